package test

import (
	"context"
	"sync"

	"fieldscan/scanner-relay/identity"

	"github.com/pkg/errors"
)

type MockResolver struct {
	sync.RWMutex
	resolutions  map[string]identity.Resolution
	returnErrors bool
	err          error
	callCount    int
}

func NewMockResolver() *MockResolver {
	return &MockResolver{resolutions: map[string]identity.Resolution{}}
}

func (r *MockResolver) Set(code string, res identity.Resolution) {
	r.Lock()
	defer r.Unlock()
	r.resolutions[identity.Normalize(code)] = res
}

func (r *MockResolver) ReturnErrors(err error) {
	r.Lock()
	defer r.Unlock()
	r.returnErrors = true
	r.err = err
}

func (r *MockResolver) Resolve(ctx context.Context, code string) (identity.Resolution, error) {
	r.Lock()
	defer r.Unlock()
	r.callCount++

	if r.returnErrors {
		return identity.Resolution{}, r.err
	}

	res, ok := r.resolutions[identity.Normalize(code)]
	if !ok {
		return identity.Resolution{}, errors.Wrapf(identity.ErrInvalidCode, "identity: unknown code %q", code)
	}

	return res, nil
}

func (r *MockResolver) CallCount() int {
	r.RLock()
	defer r.RUnlock()

	return r.callCount
}
