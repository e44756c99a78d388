package outbox

import (
	"context"
	"database/sql"
	"time"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/identity"
	"fieldscan/scanner-relay/log"
	s "fieldscan/scanner-relay/outbox/data/sql"
	"fieldscan/scanner-relay/scan"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Leases are normally resolved within one drain cycle. Anything older
// than this belongs to a process that died mid-batch and may be claimed
// again.
const staleLeaseAfter = 10 * time.Minute

var (
	ErrNoEntries = errors.New("no entries are ready for delivery")

	entryColumns = []string{"id", "event_json", "retry_count", "last_attempt_at", "next_attempt_at", "created_at", "lease_id", "leased_at"}
)

type queryProvider interface {
	InsertEntrySql() string
	SupportsInsertReturning() bool
	LeaseBatchSql(batchSize int) string
	FetchLeasedSql() string
	DeleteEntrySql() string
	ReleaseLeaseSql() string
	MarkFailedSql() string
	InsertDeadLetterSql() string
	PendingCountSql() string
	DeadLetterCountSql() string
	PurgeDeadLettersSql() string
	UpsertIdentitySql() string
	GetIdentitySql() string
	TouchIdentitySql() string
	ActivateIdentitySql() string
	DeactivateIdentitySql() string
	IdentityCountSql() string
}

// Store is the durable home of queued scan events, abandoned deliveries
// and provisioned identities. All timestamps it writes are UTC.
type Store struct {
	db            *sql.DB
	cfg           *config.Config
	queryProvider queryProvider
}

func NewStore(db *sql.DB, cfg *config.Config) Store {
	return NewStoreWithQueryProvider(db, cfg, newQueryProvider(cfg.DBDriver, entryColumns))
}

func NewStoreWithQueryProvider(db *sql.DB, cfg *config.Config, qp queryProvider) Store {
	return Store{
		db:            db,
		cfg:           cfg,
		queryProvider: qp,
	}
}

// Enqueue appends an event to the queue and returns the new entry's id.
func (st Store) Enqueue(ctx context.Context, ev scan.Event) (int64, error) {
	payload, err := ev.Encode()
	if err != nil {
		return 0, errors.Errorf("outbox: could not encode the event for storage: %s", err)
	}

	q := st.queryProvider.InsertEntrySql()
	now := time.Now().UTC()

	if st.queryProvider.SupportsInsertReturning() {
		var id int64
		if err = st.db.QueryRowContext(ctx, q, payload, now).Scan(&id); err != nil {
			return 0, errors.Errorf("outbox: error inserting an entry: %s", err)
		}

		return id, nil
	}

	res, err := st.db.ExecContext(ctx, q, payload, now)
	if err != nil {
		return 0, errors.Errorf("outbox: error inserting an entry: %s", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Errorf("outbox: error reading the inserted entry id: %s", err)
	}

	return id, nil
}

// LeaseBatch claims the oldest due entries and returns them. It does so
// in a way that prevents another claimant picking up the same rows, and
// skips entries whose backoff has not elapsed yet. When nothing is due
// the special ErrNoEntries value is returned as the error.
func (st Store) LeaseBatch(ctx context.Context) (*Batch, error) {
	leaseId := uuid.New()
	now := time.Now().UTC()
	stale := now.Add(-staleLeaseAfter)

	upSql := st.queryProvider.LeaseBatchSql(st.cfg.BatchSize)

	res, err := st.db.ExecContext(ctx, upSql, leaseId, now, stale, now)
	if err != nil {
		return nil, errors.Errorf("outbox: error leasing a batch of entries: %s", err)
	}

	// if there is an error determining the affected rows, we treat it as a failed query
	// as the drivers we use never return an error value here
	count, _ := res.RowsAffected()
	if count < 1 {
		return nil, ErrNoEntries
	}

	rows, err := st.db.QueryContext(ctx, st.queryProvider.FetchLeasedSql(), leaseId)
	if err != nil {
		return nil, errors.Errorf("outbox: error fetching the leased batch: %s", err)
	}
	defer rows.Close()

	batch := &Batch{
		LeaseId: leaseId,
		Entries: []*Entry{},
	}

	for rows.Next() {
		e := &Entry{}
		err = rows.Scan(&e.Id, &e.EventJson, &e.RetryCount, &e.LastAttemptAt, &e.NextAttemptAt, &e.CreatedAt, &e.LeaseId, &e.LeasedAt)
		if err != nil {
			return nil, errors.Errorf("outbox: error scanning a leased entry into memory: %s", err)
		}
		batch.Entries = append(batch.Entries, e)
	}

	return batch, nil
}

// MarkDelivered removes a delivered entry. Deleting an already absent row
// is a no-op, which keeps redelivery after a crash harmless.
func (st Store) MarkDelivered(ctx context.Context, id int64) error {
	_, err := st.db.ExecContext(ctx, st.queryProvider.DeleteEntrySql(), id)
	if err != nil {
		return errors.Errorf("outbox: error removing delivered entry %d: %s", id, err)
	}

	return nil
}

// MarkFailed records a failed delivery attempt. The entry is released
// back to the queue with its retry count bumped and the next attempt
// gated on nextAttemptAt. Once the retry budget is exhausted the entry
// moves to the dead letter table in the same transaction, and the second
// return value reports that the entry was abandoned.
func (st Store) MarkFailed(ctx context.Context, entry *Entry, reason string, nextAttemptAt time.Time) (int, bool, error) {
	newRetryCount := entry.RetryCount + 1
	now := time.Now().UTC()

	if newRetryCount <= st.cfg.MaxRetries {
		q := st.queryProvider.MarkFailedSql()
		if _, err := st.db.ExecContext(ctx, q, now, nextAttemptAt.UTC(), entry.Id); err != nil {
			return 0, false, errors.Errorf("outbox: error recording the failed attempt on entry %d: %s", entry.Id, err)
		}

		return newRetryCount, false, nil
	}

	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, errors.Errorf("outbox: error starting a transaction to abandon entry %d: %s", entry.Id, err)
	}

	if _, err = tx.ExecContext(ctx, st.queryProvider.InsertDeadLetterSql(), reason, now, entry.Id); err != nil {
		rollback(tx)
		return 0, false, errors.Errorf("outbox: error dead lettering entry %d: %s", entry.Id, err)
	}

	if _, err = tx.ExecContext(ctx, st.queryProvider.DeleteEntrySql(), entry.Id); err != nil {
		rollback(tx)
		return 0, false, errors.Errorf("outbox: error removing abandoned entry %d: %s", entry.Id, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, false, errors.Errorf("outbox: error committing the abandonment of entry %d: %s", entry.Id, err)
	}

	log.Logger.WithFields(logrus.Fields{
		"entry_id":    entry.Id,
		"retry_count": newRetryCount,
		"reason":      reason,
	}).Warn("entry moved to the dead letter table")

	return newRetryCount, true, nil
}

// ReleaseLease returns all entries still held under leaseId to the
// queue. Entries already delivered or failed within the batch are
// untouched because they no longer carry the lease.
func (st Store) ReleaseLease(ctx context.Context, leaseId uuid.UUID) error {
	_, err := st.db.ExecContext(ctx, st.queryProvider.ReleaseLeaseSql(), leaseId)
	if err != nil {
		return errors.Errorf("outbox: error releasing lease %s: %s", leaseId, err)
	}

	return nil
}

func (st Store) PendingCount() (uint, error) {
	return st.count(st.queryProvider.PendingCountSql())
}

func (st Store) DeadLetterCount() (uint, error) {
	return st.count(st.queryProvider.DeadLetterCountSql())
}

func (st Store) IdentityCount() (uint, error) {
	return st.count(st.queryProvider.IdentityCountSql())
}

// PurgeDeadLetters removes dead letters recorded before olderThan and
// returns how many were purged.
func (st Store) PurgeDeadLetters(olderThan time.Time) (int64, error) {
	res, err := st.db.Exec(st.queryProvider.PurgeDeadLettersSql(), olderThan.UTC())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (st Store) UpsertIdentity(ctx context.Context, ident identity.Identity) error {
	q := st.queryProvider.UpsertIdentitySql()
	_, err := st.db.ExecContext(ctx, q, ident.Id, ident.Credential, ident.ProvisionedAt.UTC(), ident.LastSeenAt.UTC(), string(ident.Status))
	if err != nil {
		return errors.Errorf("outbox: error upserting identity %s: %s", ident.Id, err)
	}

	return nil
}

// GetIdentity loads one identity; a miss is (nil, nil).
func (st Store) GetIdentity(ctx context.Context, id string) (*identity.Identity, error) {
	row := st.db.QueryRowContext(ctx, st.queryProvider.GetIdentitySql(), id)

	ident := &identity.Identity{}
	var status string
	err := row.Scan(&ident.Id, &ident.Credential, &ident.ProvisionedAt, &ident.LastSeenAt, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("outbox: error reading identity %s: %s", id, err)
	}
	ident.Status = identity.Status(status)

	return ident, nil
}

func (st Store) TouchIdentity(ctx context.Context, id string, seenAt time.Time) error {
	_, err := st.db.ExecContext(ctx, st.queryProvider.TouchIdentitySql(), seenAt.UTC(), id)
	if err != nil {
		return errors.Errorf("outbox: error touching identity %s: %s", id, err)
	}

	return nil
}

// ActivateIdentity promotes a pending identity to active. Identities that
// were deactivated stay deactivated, hence the status guard in the query.
func (st Store) ActivateIdentity(ctx context.Context, id string) error {
	_, err := st.db.ExecContext(ctx, st.queryProvider.ActivateIdentitySql(), string(identity.StatusActive), id, string(identity.StatusPending))
	if err != nil {
		return errors.Errorf("outbox: error activating identity %s: %s", id, err)
	}

	return nil
}

func (st Store) DeactivateIdentity(ctx context.Context, id string) error {
	_, err := st.db.ExecContext(ctx, st.queryProvider.DeactivateIdentitySql(), string(identity.StatusDeactivated), id)
	if err != nil {
		return errors.Errorf("outbox: error deactivating identity %s: %s", id, err)
	}

	return nil
}

func (st Store) count(q string) (uint, error) {
	res := st.db.QueryRow(q)

	var count uint
	if err := res.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		log.Logger.Errorf("error rolling back the DB transaction: %s", err)
	}
}

func newQueryProvider(d config.DbDriver, columns []string) queryProvider {
	switch true {
	case d.Postgres():
		return &s.PostgresQueryProvider{
			Table:           s.DefaultOutboxTable,
			IdentitiesTable: s.DefaultIdentitiesTable,
			DeadLetterTable: s.DefaultDeadLetterTable,
			Columns:         columns,
		}
	case d.MySQL():
		return &s.MysqlQueryProvider{
			Table:           s.DefaultOutboxTable,
			IdentitiesTable: s.DefaultIdentitiesTable,
			DeadLetterTable: s.DefaultDeadLetterTable,
			Columns:         columns,
		}
	}

	return &s.SqliteQueryProvider{
		Table:           s.DefaultOutboxTable,
		IdentitiesTable: s.DefaultIdentitiesTable,
		DeadLetterTable: s.DefaultDeadLetterTable,
		Columns:         columns,
	}
}
