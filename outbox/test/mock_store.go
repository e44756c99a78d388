package test

import (
	"context"
	"sync"
	"time"

	"fieldscan/scanner-relay/outbox"
	"fieldscan/scanner-relay/scan"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MockStore is an in-memory stand in for the durable store. It keeps the
// real lease and retry semantics so worker tests exercise the same state
// transitions the SQL store performs.
type MockStore struct {
	sync.RWMutex
	entries       []*outbox.Entry
	deadLetters   []outbox.DeadLetter
	nextId        int64
	batchSize     int
	maxRetries    int
	returnErrors  bool
	deliveredIds  []int64
	activatedIds  []string
	releaseCount  int
	enqueueCount  int
	pendingSize   *uint
	deadLetterNum *uint
	identityNum   uint
}

func NewMockStore(batchSize, maxRetries int) *MockStore {
	return &MockStore{
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

func (s *MockStore) ReturnErrors() {
	s.Lock()
	defer s.Unlock()
	s.returnErrors = true
}

func (s *MockStore) Enqueue(ctx context.Context, ev scan.Event) (int64, error) {
	s.Lock()
	defer s.Unlock()
	s.enqueueCount++

	if s.returnErrors {
		return 0, errors.New("oops")
	}

	payload, err := ev.Encode()
	if err != nil {
		return 0, err
	}

	s.nextId++
	s.entries = append(s.entries, &outbox.Entry{
		Id:        s.nextId,
		EventJson: payload,
		CreatedAt: time.Now().UTC(),
	})

	return s.nextId, nil
}

func (s *MockStore) LeaseBatch(ctx context.Context) (*outbox.Batch, error) {
	s.Lock()
	defer s.Unlock()

	if s.returnErrors {
		return nil, errors.New("oops")
	}

	now := time.Now().UTC()
	batch := &outbox.Batch{
		LeaseId: uuid.New(),
	}

	for _, e := range s.entries {
		if len(batch.Entries) >= s.batchSize {
			break
		}
		if e.LeaseId != nil {
			continue
		}
		if e.NextAttemptAt.Valid && e.NextAttemptAt.Time.After(now) {
			continue
		}

		leaseId := batch.LeaseId
		e.LeaseId = &leaseId
		e.LeasedAt.Time = now
		e.LeasedAt.Valid = true
		batch.Entries = append(batch.Entries, e)
	}

	if len(batch.Entries) == 0 {
		return nil, outbox.ErrNoEntries
	}

	return batch, nil
}

func (s *MockStore) MarkDelivered(ctx context.Context, id int64) error {
	s.Lock()
	defer s.Unlock()

	if s.returnErrors {
		return errors.New("oops")
	}

	s.deliveredIds = append(s.deliveredIds, id)
	s.remove(id)

	return nil
}

func (s *MockStore) MarkFailed(ctx context.Context, entry *outbox.Entry, reason string, nextAttemptAt time.Time) (int, bool, error) {
	s.Lock()
	defer s.Unlock()

	if s.returnErrors {
		return 0, false, errors.New("oops")
	}

	newRetryCount := entry.RetryCount + 1

	if newRetryCount > s.maxRetries {
		s.deadLetters = append(s.deadLetters, outbox.DeadLetter{
			Id:          entry.Id,
			EventJson:   entry.EventJson,
			RetryCount:  newRetryCount,
			Reason:      reason,
			AbandonedAt: time.Now().UTC(),
		})
		s.remove(entry.Id)

		return newRetryCount, true, nil
	}

	for _, e := range s.entries {
		if e.Id == entry.Id {
			e.RetryCount = newRetryCount
			e.LastAttemptAt.Time = time.Now().UTC()
			e.LastAttemptAt.Valid = true
			e.NextAttemptAt.Time = nextAttemptAt
			e.NextAttemptAt.Valid = true
			e.LeaseId = nil
			e.LeasedAt.Valid = false
		}
	}

	return newRetryCount, false, nil
}

func (s *MockStore) ActivateIdentity(ctx context.Context, id string) error {
	s.Lock()
	defer s.Unlock()

	if s.returnErrors {
		return errors.New("oops")
	}

	s.activatedIds = append(s.activatedIds, id)

	return nil
}

func (s *MockStore) ReleaseLease(ctx context.Context, leaseId uuid.UUID) error {
	s.Lock()
	defer s.Unlock()
	s.releaseCount++

	if s.returnErrors {
		return errors.New("oops")
	}

	for _, e := range s.entries {
		if e.LeaseId != nil && *e.LeaseId == leaseId {
			e.LeaseId = nil
			e.LeasedAt.Valid = false
		}
	}

	return nil
}

func (s *MockStore) SetPendingCount(size uint) {
	s.Lock()
	defer s.Unlock()
	s.pendingSize = &size
}

func (s *MockStore) SetDeadLetterCount(size uint) {
	s.Lock()
	defer s.Unlock()
	s.deadLetterNum = &size
}

func (s *MockStore) SetIdentityCount(size uint) {
	s.Lock()
	defer s.Unlock()
	s.identityNum = size
}

func (s *MockStore) PendingCount() (uint, error) {
	s.RLock()
	defer s.RUnlock()

	if s.returnErrors {
		return 0, errors.New("oops")
	}

	if s.pendingSize != nil {
		return *s.pendingSize, nil
	}

	return uint(len(s.entries)), nil
}

func (s *MockStore) DeadLetterCount() (uint, error) {
	s.RLock()
	defer s.RUnlock()

	if s.returnErrors {
		return 0, errors.New("oops")
	}

	if s.deadLetterNum != nil {
		return *s.deadLetterNum, nil
	}

	return uint(len(s.deadLetters)), nil
}

func (s *MockStore) IdentityCount() (uint, error) {
	s.RLock()
	defer s.RUnlock()

	if s.returnErrors {
		return 0, errors.New("oops")
	}

	return s.identityNum, nil
}

func (s *MockStore) PurgeDeadLetters(olderThan time.Time) (int64, error) {
	s.Lock()
	defer s.Unlock()

	if s.returnErrors {
		return 0, errors.New("oops")
	}

	var kept []outbox.DeadLetter
	var purged int64
	for _, dl := range s.deadLetters {
		if dl.AbandonedAt.Before(olderThan) {
			purged++
			continue
		}
		kept = append(kept, dl)
	}
	s.deadLetters = kept

	return purged, nil
}

func (s *MockStore) Entries() []*outbox.Entry {
	s.RLock()
	defer s.RUnlock()

	out := make([]*outbox.Entry, len(s.entries))
	copy(out, s.entries)

	return out
}

func (s *MockStore) DeadLetters() []outbox.DeadLetter {
	s.RLock()
	defer s.RUnlock()

	out := make([]outbox.DeadLetter, len(s.deadLetters))
	copy(out, s.deadLetters)

	return out
}

func (s *MockStore) DeliveredIds() []int64 {
	s.RLock()
	defer s.RUnlock()

	out := make([]int64, len(s.deliveredIds))
	copy(out, s.deliveredIds)

	return out
}

func (s *MockStore) ActivatedIds() []string {
	s.RLock()
	defer s.RUnlock()

	out := make([]string, len(s.activatedIds))
	copy(out, s.activatedIds)

	return out
}

func (s *MockStore) ReleaseCount() int {
	s.RLock()
	defer s.RUnlock()

	return s.releaseCount
}

func (s *MockStore) EnqueueCount() int {
	s.RLock()
	defer s.RUnlock()

	return s.enqueueCount
}

func (s *MockStore) remove(id int64) {
	var kept []*outbox.Entry
	for _, e := range s.entries {
		if e.Id != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}
