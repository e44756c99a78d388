package sql

import (
	"fmt"
	"strings"
)

type PostgresQueryProvider struct {
	Table           string
	IdentitiesTable string
	DeadLetterTable string
	Columns         []string
}

func (p PostgresQueryProvider) InsertEntrySql() string {
	return fmt.Sprintf("INSERT INTO %s (event_json, retry_count, created_at) VALUES ($1, 0, $2) RETURNING id", p.Table)
}

func (p PostgresQueryProvider) SupportsInsertReturning() bool {
	return true
}

func (p PostgresQueryProvider) LeaseBatchSql(batchSize int) string {
	q := `UPDATE %s SET lease_id = $1, leased_at = $2 WHERE id IN (SELECT id FROM %s WHERE (lease_id IS NULL OR leased_at < $3) AND (next_attempt_at IS NULL OR next_attempt_at <= $4) ORDER BY created_at ASC, id ASC LIMIT %d)`

	return fmt.Sprintf(q, p.Table, p.Table, batchSize)
}

func (p PostgresQueryProvider) FetchLeasedSql() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE lease_id = $1 ORDER BY created_at ASC, id ASC", strings.Join(p.Columns, ", "), p.Table)
}

func (p PostgresQueryProvider) DeleteEntrySql() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = $1", p.Table)
}

func (p PostgresQueryProvider) ReleaseLeaseSql() string {
	return fmt.Sprintf("UPDATE %s SET lease_id = NULL, leased_at = NULL WHERE lease_id = $1", p.Table)
}

func (p PostgresQueryProvider) MarkFailedSql() string {
	return fmt.Sprintf("UPDATE %s SET retry_count = retry_count + 1, last_attempt_at = $1, next_attempt_at = $2, lease_id = NULL, leased_at = NULL WHERE id = $3", p.Table)
}

func (p PostgresQueryProvider) InsertDeadLetterSql() string {
	return fmt.Sprintf("INSERT INTO %s (event_json, retry_count, reason, abandoned_at) SELECT event_json, retry_count + 1, $1, $2 FROM %s WHERE id = $3", p.DeadLetterTable, p.Table)
}

func (p PostgresQueryProvider) PendingCountSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", p.Table)
}

func (p PostgresQueryProvider) DeadLetterCountSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", p.DeadLetterTable)
}

func (p PostgresQueryProvider) PurgeDeadLettersSql() string {
	return fmt.Sprintf("DELETE FROM %s WHERE abandoned_at <= $1", p.DeadLetterTable)
}

func (p PostgresQueryProvider) UpsertIdentitySql() string {
	q := `INSERT INTO %s (identity_id, credential, provisioned_at, last_seen_at, status) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (identity_id) DO UPDATE SET credential = excluded.credential, last_seen_at = excluded.last_seen_at, status = excluded.status`

	return fmt.Sprintf(q, p.IdentitiesTable)
}

func (p PostgresQueryProvider) GetIdentitySql() string {
	return fmt.Sprintf("SELECT identity_id, credential, provisioned_at, last_seen_at, status FROM %s WHERE identity_id = $1", p.IdentitiesTable)
}

func (p PostgresQueryProvider) TouchIdentitySql() string {
	return fmt.Sprintf("UPDATE %s SET last_seen_at = $1 WHERE identity_id = $2", p.IdentitiesTable)
}

func (p PostgresQueryProvider) ActivateIdentitySql() string {
	return fmt.Sprintf("UPDATE %s SET status = $1 WHERE identity_id = $2 AND status = $3", p.IdentitiesTable)
}

func (p PostgresQueryProvider) DeactivateIdentitySql() string {
	return fmt.Sprintf("UPDATE %s SET status = $1 WHERE identity_id = $2", p.IdentitiesTable)
}

func (p PostgresQueryProvider) IdentityCountSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", p.IdentitiesTable)
}
