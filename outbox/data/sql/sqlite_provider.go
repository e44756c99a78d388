package sql

import (
	"fmt"
	"strings"
)

const (
	DefaultOutboxTable     = "outbox"
	DefaultIdentitiesTable = "identities"
	DefaultDeadLetterTable = "dead_letters"
)

// SqliteQueryProvider is the default provider. Scanner units persist to a
// local sqlite file so that queued scans survive power loss.
type SqliteQueryProvider struct {
	Table           string
	IdentitiesTable string
	DeadLetterTable string
	Columns         []string
}

func (s SqliteQueryProvider) InsertEntrySql() string {
	return fmt.Sprintf("INSERT INTO %s (event_json, retry_count, created_at) VALUES (?, 0, ?) RETURNING id", s.Table)
}

func (s SqliteQueryProvider) SupportsInsertReturning() bool {
	return true
}

func (s SqliteQueryProvider) LeaseBatchSql(batchSize int) string {
	q := `UPDATE %s SET lease_id = ?, leased_at = ? WHERE id IN (SELECT id FROM %s WHERE (lease_id IS NULL OR leased_at < ?) AND (next_attempt_at IS NULL OR next_attempt_at <= ?) ORDER BY created_at ASC, id ASC LIMIT %d)`

	return fmt.Sprintf(q, s.Table, s.Table, batchSize)
}

func (s SqliteQueryProvider) FetchLeasedSql() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE lease_id = ? ORDER BY created_at ASC, id ASC", strings.Join(s.Columns, ", "), s.Table)
}

func (s SqliteQueryProvider) DeleteEntrySql() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.Table)
}

func (s SqliteQueryProvider) ReleaseLeaseSql() string {
	return fmt.Sprintf("UPDATE %s SET lease_id = NULL, leased_at = NULL WHERE lease_id = ?", s.Table)
}

func (s SqliteQueryProvider) MarkFailedSql() string {
	return fmt.Sprintf("UPDATE %s SET retry_count = retry_count + 1, last_attempt_at = ?, next_attempt_at = ?, lease_id = NULL, leased_at = NULL WHERE id = ?", s.Table)
}

func (s SqliteQueryProvider) InsertDeadLetterSql() string {
	return fmt.Sprintf("INSERT INTO %s (event_json, retry_count, reason, abandoned_at) SELECT event_json, retry_count + 1, ?, ? FROM %s WHERE id = ?", s.DeadLetterTable, s.Table)
}

func (s SqliteQueryProvider) PendingCountSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", s.Table)
}

func (s SqliteQueryProvider) DeadLetterCountSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", s.DeadLetterTable)
}

func (s SqliteQueryProvider) PurgeDeadLettersSql() string {
	return fmt.Sprintf("DELETE FROM %s WHERE abandoned_at <= ?", s.DeadLetterTable)
}

func (s SqliteQueryProvider) UpsertIdentitySql() string {
	q := `INSERT INTO %s (identity_id, credential, provisioned_at, last_seen_at, status) VALUES (?, ?, ?, ?, ?) ON CONFLICT (identity_id) DO UPDATE SET credential = excluded.credential, last_seen_at = excluded.last_seen_at, status = excluded.status`

	return fmt.Sprintf(q, s.IdentitiesTable)
}

func (s SqliteQueryProvider) GetIdentitySql() string {
	return fmt.Sprintf("SELECT identity_id, credential, provisioned_at, last_seen_at, status FROM %s WHERE identity_id = ?", s.IdentitiesTable)
}

func (s SqliteQueryProvider) TouchIdentitySql() string {
	return fmt.Sprintf("UPDATE %s SET last_seen_at = ? WHERE identity_id = ?", s.IdentitiesTable)
}

func (s SqliteQueryProvider) ActivateIdentitySql() string {
	return fmt.Sprintf("UPDATE %s SET status = ? WHERE identity_id = ? AND status = ?", s.IdentitiesTable)
}

func (s SqliteQueryProvider) DeactivateIdentitySql() string {
	return fmt.Sprintf("UPDATE %s SET status = ? WHERE identity_id = ?", s.IdentitiesTable)
}

func (s SqliteQueryProvider) IdentityCountSql() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", s.IdentitiesTable)
}
