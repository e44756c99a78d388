package test

import (
	"context"
	"sync"
	"time"
)

type MockProvisioner struct {
	sync.RWMutex
	credential string
	created    bool
	err        error
	delay      time.Duration
	callCount  int
}

func NewMockProvisioner(credential string, created bool) *MockProvisioner {
	return &MockProvisioner{
		credential: credential,
		created:    created,
	}
}

func (p *MockProvisioner) ReturnError(err error) {
	p.Lock()
	defer p.Unlock()
	p.err = err
}

// SetDelay makes each provisioning call take at least d, which lets tests
// hold several resolvers inside one in-flight call.
func (p *MockProvisioner) SetDelay(d time.Duration) {
	p.Lock()
	defer p.Unlock()
	p.delay = d
}

func (p *MockProvisioner) ProvisionOrFetch(ctx context.Context, id string) (string, bool, error) {
	p.Lock()
	p.callCount++
	cred, created, err, delay := p.credential, p.created, p.err, p.delay
	p.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if err != nil {
		return "", false, err
	}

	return cred, created, nil
}

func (p *MockProvisioner) CallCount() int {
	p.RLock()
	defer p.RUnlock()

	return p.callCount
}
