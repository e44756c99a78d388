package outbox

import (
	"database/sql"
	"time"

	"fieldscan/scanner-relay/scan"

	"github.com/google/uuid"
)

// Entry is one queued scan event awaiting delivery. The event itself is
// kept as JSON so the queue schema never has to change when the event
// grows a field.
type Entry struct {
	Id            int64
	EventJson     []byte
	RetryCount    int
	LastAttemptAt sql.NullTime
	NextAttemptAt sql.NullTime
	CreatedAt     time.Time
	LeaseId       *uuid.UUID
	LeasedAt      sql.NullTime
}

// Event decodes the queued payload back into a scan event.
func (e Entry) Event() (scan.Event, error) {
	return scan.DecodeEvent(e.EventJson)
}

// Batch is a leased set of entries. The lease keeps other claimants away
// from the same rows until it is resolved or goes stale.
type Batch struct {
	LeaseId uuid.UUID
	Entries []*Entry
}

// DeadLetter is an entry that exhausted its retry budget and was moved
// out of the live queue.
type DeadLetter struct {
	Id          int64
	EventJson   []byte
	RetryCount  int
	Reason      string
	AbandonedAt time.Time
}
