package sql

import (
	"fmt"
	"strings"
)

type MysqlQueryProvider struct {
	Table           string
	IdentitiesTable string
	DeadLetterTable string
	Columns         []string
}

func (m MysqlQueryProvider) InsertEntrySql() string {
	return fmt.Sprintf("INSERT INTO %s (event_json, retry_count, created_at) VALUES (?, 0, ?)", m.Table)
}

// MySQL has no INSERT .. RETURNING; callers fall back to LastInsertId.
func (m MysqlQueryProvider) SupportsInsertReturning() bool {
	return false
}

// MySQL cannot select from the table being updated, so the lease is
// applied with an ordered, limited UPDATE instead of a subquery.
func (m MysqlQueryProvider) LeaseBatchSql(batchSize int) string {
	q := "UPDATE %s SET lease_id = ?, leased_at = ? WHERE (lease_id IS NULL OR leased_at < ?) AND (next_attempt_at IS NULL OR next_attempt_at <= ?) ORDER BY created_at ASC, id ASC LIMIT %d"

	return fmt.Sprintf(q, m.Table, batchSize)
}

func (m MysqlQueryProvider) FetchLeasedSql() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE lease_id = ? ORDER BY created_at ASC, id ASC", strings.Join(m.escapeColumns(), ", "), m.Table)
}

func (m MysqlQueryProvider) DeleteEntrySql() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = ?", m.Table)
}

func (m MysqlQueryProvider) ReleaseLeaseSql() string {
	return fmt.Sprintf("UPDATE %s SET lease_id = NULL, leased_at = NULL WHERE lease_id = ?", m.Table)
}

func (m MysqlQueryProvider) MarkFailedSql() string {
	return fmt.Sprintf("UPDATE %s SET retry_count = retry_count + 1, last_attempt_at = ?, next_attempt_at = ?, lease_id = NULL, leased_at = NULL WHERE id = ?", m.Table)
}

func (m MysqlQueryProvider) InsertDeadLetterSql() string {
	return fmt.Sprintf("INSERT INTO %s (event_json, retry_count, reason, abandoned_at) SELECT event_json, retry_count + 1, ?, ? FROM %s WHERE id = ?", m.DeadLetterTable, m.Table)
}

func (m MysqlQueryProvider) PendingCountSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", m.Table)
}

func (m MysqlQueryProvider) DeadLetterCountSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", m.DeadLetterTable)
}

func (m MysqlQueryProvider) PurgeDeadLettersSql() string {
	return fmt.Sprintf("DELETE FROM %s WHERE abandoned_at <= ?", m.DeadLetterTable)
}

func (m MysqlQueryProvider) UpsertIdentitySql() string {
	q := "INSERT INTO %s (identity_id, credential, provisioned_at, last_seen_at, status) VALUES (?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE credential = VALUES(credential), last_seen_at = VALUES(last_seen_at), status = VALUES(status)"

	return fmt.Sprintf(q, m.IdentitiesTable)
}

func (m MysqlQueryProvider) GetIdentitySql() string {
	return fmt.Sprintf("SELECT identity_id, credential, provisioned_at, last_seen_at, status FROM %s WHERE identity_id = ?", m.IdentitiesTable)
}

func (m MysqlQueryProvider) TouchIdentitySql() string {
	return fmt.Sprintf("UPDATE %s SET last_seen_at = ? WHERE identity_id = ?", m.IdentitiesTable)
}

func (m MysqlQueryProvider) ActivateIdentitySql() string {
	return fmt.Sprintf("UPDATE %s SET status = ? WHERE identity_id = ? AND status = ?", m.IdentitiesTable)
}

func (m MysqlQueryProvider) DeactivateIdentitySql() string {
	return fmt.Sprintf("UPDATE %s SET status = ? WHERE identity_id = ?", m.IdentitiesTable)
}

func (m MysqlQueryProvider) IdentityCountSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", m.IdentitiesTable)
}

func (m MysqlQueryProvider) escapeColumns() []string {
	var escaped []string
	for _, c := range m.Columns {
		escaped = append(escaped, "`"+c+"`")
	}

	return escaped
}
