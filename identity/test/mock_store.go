package test

import (
	"context"
	"sync"
	"time"

	"fieldscan/scanner-relay/identity"

	"github.com/pkg/errors"
)

type MockStore struct {
	sync.RWMutex
	identities   map[string]identity.Identity
	returnErrors bool
	getCount     int
	upsertCount  int
	touchCount   int
}

func NewMockStore() *MockStore {
	return &MockStore{
		identities: map[string]identity.Identity{},
	}
}

func (s *MockStore) ReturnErrors() {
	s.Lock()
	defer s.Unlock()
	s.returnErrors = true
}

func (s *MockStore) Seed(ident identity.Identity) {
	s.Lock()
	defer s.Unlock()
	s.identities[ident.Id] = ident
}

func (s *MockStore) GetIdentity(ctx context.Context, id string) (*identity.Identity, error) {
	s.Lock()
	defer s.Unlock()
	s.getCount++

	if s.returnErrors {
		return nil, errors.New("oops")
	}

	ident, ok := s.identities[id]
	if !ok {
		return nil, nil
	}

	return &ident, nil
}

func (s *MockStore) UpsertIdentity(ctx context.Context, ident identity.Identity) error {
	s.Lock()
	defer s.Unlock()
	s.upsertCount++

	if s.returnErrors {
		return errors.New("oops")
	}

	s.identities[ident.Id] = ident

	return nil
}

func (s *MockStore) TouchIdentity(ctx context.Context, id string, seenAt time.Time) error {
	s.Lock()
	defer s.Unlock()
	s.touchCount++

	if s.returnErrors {
		return errors.New("oops")
	}

	if ident, ok := s.identities[id]; ok {
		ident.LastSeenAt = seenAt
		s.identities[id] = ident
	}

	return nil
}

func (s *MockStore) DeactivateIdentity(ctx context.Context, id string) error {
	s.Lock()
	defer s.Unlock()

	if s.returnErrors {
		return errors.New("oops")
	}

	if ident, ok := s.identities[id]; ok {
		ident.Status = identity.StatusDeactivated
		s.identities[id] = ident
	}

	return nil
}

func (s *MockStore) Stored(id string) (identity.Identity, bool) {
	s.RLock()
	defer s.RUnlock()
	ident, ok := s.identities[id]

	return ident, ok
}

func (s *MockStore) GetCount() int {
	s.RLock()
	defer s.RUnlock()

	return s.getCount
}

func (s *MockStore) UpsertCount() int {
	s.RLock()
	defer s.RUnlock()

	return s.upsertCount
}

func (s *MockStore) TouchCount() int {
	s.RLock()
	defer s.RUnlock()

	return s.touchCount
}
