package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/log"

	"github.com/agnivade/levenshtein"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const (
	maxCodeLength = 64

	// A reserved test code that arrives with one character mangled or a
	// couple truncated is almost certainly a bad read of the test label,
	// not a real product. Anything within this edit distance is refused.
	reservedCodeDistance = 2

	touchTimeout = 5 * time.Second
)

var (
	ErrInvalidCode             = errors.New("the scanned code is not usable as an identity")
	ErrDeactivated             = errors.New("the identity has been deactivated")
	ErrProvisionRejected       = errors.New("the provisioning service rejected the code")
	ErrProvisioningUnavailable = errors.New("the provisioning service is unavailable")
)

// Resolution is the outcome of mapping a scanned code to an identity.
// TestCode short-circuits everything else: nothing was resolved and
// nothing should be queued.
type Resolution struct {
	IdentityId string
	Credential string
	FirstSeen  bool
	TestCode   bool
}

// Provisioner obtains the credential for an identity, creating it
// upstream when it does not exist yet. Implementations wrap
// ErrProvisionRejected or ErrProvisioningUnavailable so that callers can
// tell a refusal from an outage.
type Provisioner interface {
	ProvisionOrFetch(ctx context.Context, id string) (credential string, created bool, err error)
}

// Store is the slice of the durable store the resolver needs. A miss is
// (nil, nil), not an error.
type Store interface {
	GetIdentity(ctx context.Context, id string) (*Identity, error)
	UpsertIdentity(ctx context.Context, ident Identity) error
	TouchIdentity(ctx context.Context, id string, seenAt time.Time) error
	DeactivateIdentity(ctx context.Context, id string) error
}

// Resolver maps scanned codes to provisioned identities. Known codes are
// answered from an in-memory cache without touching the store or the
// network; unknown codes are provisioned at most once at a time per code.
type Resolver struct {
	store            Store
	prov             Provisioner
	reserved         []string
	minCodeLength    int
	provisionTimeout time.Duration
	group            singleflight.Group
	clock            func() time.Time

	mu    sync.RWMutex
	cache map[string]Identity
}

func NewResolver(store Store, prov Provisioner, cfg *config.Config) *Resolver {
	reserved := make([]string, 0, len(cfg.ReservedTestCodes))
	for _, rc := range cfg.ReservedTestCodes {
		if n := Normalize(rc); n != "" {
			reserved = append(reserved, n)
		}
	}

	return &Resolver{
		store:            store,
		prov:             prov,
		reserved:         reserved,
		minCodeLength:    cfg.MinCodeLength,
		provisionTimeout: cfg.GetProvisionTimeout(),
		clock:            time.Now,
		cache:            map[string]Identity{},
	}
}

// Resolve maps code to its identity, provisioning it on first sight.
// Concurrent calls for the same code share a single provisioning attempt,
// and exactly one of them observes FirstSeen for a newly created
// identity.
func (r *Resolver) Resolve(ctx context.Context, code string) (Resolution, error) {
	norm := Normalize(code)
	if err := r.validate(norm); err != nil {
		return Resolution{}, err
	}

	if r.isReserved(norm) {
		return Resolution{TestCode: true}, nil
	}

	if near, reservedCode := r.nearReserved(norm); near {
		return Resolution{}, errors.Wrapf(ErrInvalidCode, "code %q reads like a mangled scan of reserved test code %q", norm, reservedCode)
	}

	if ident, ok := r.cached(norm); ok {
		if ident.Deactivated() {
			return Resolution{}, errors.Wrapf(ErrDeactivated, "identity %s", norm)
		}
		r.touch(norm)

		return Resolution{IdentityId: ident.Id, Credential: ident.Credential}, nil
	}

	v, err, _ := r.group.Do(norm, func() (interface{}, error) {
		return r.provision(ctx, norm)
	})
	if err != nil {
		return Resolution{}, err
	}

	p := v.(*provisioned)

	return Resolution{
		IdentityId: p.ident.Id,
		Credential: p.ident.Credential,
		FirstSeen:  p.claimFirstSeen(),
	}, nil
}

// Deactivate marks an identity as retired in the store and the cache.
// Subsequent scans of its code are rejected at ingest.
func (r *Resolver) Deactivate(ctx context.Context, id string) error {
	norm := Normalize(id)
	if norm == "" {
		return errors.Wrap(ErrInvalidCode, "empty identity")
	}

	if err := r.store.DeactivateIdentity(ctx, norm); err != nil {
		return errors.Wrapf(err, "deactivating identity %s", norm)
	}

	r.mu.Lock()
	if ident, ok := r.cache[norm]; ok {
		ident.Status = StatusDeactivated
		r.cache[norm] = ident
	}
	r.mu.Unlock()

	log.Logger.Infof("identity %s deactivated", norm)

	return nil
}

// provisioned carries a freshly resolved identity out of the singleflight
// group. first is 1 only for identities created by this very call, and is
// claimed by exactly one of the callers sharing the result.
type provisioned struct {
	ident Identity
	first uint32
}

func (p *provisioned) claimFirstSeen() bool {
	return atomic.CompareAndSwapUint32(&p.first, 1, 0)
}

func (r *Resolver) provision(ctx context.Context, id string) (*provisioned, error) {
	ident, err := r.store.GetIdentity(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "reading identity %s from the local store", id)
	}

	if ident != nil {
		if ident.Deactivated() {
			return nil, errors.Wrapf(ErrDeactivated, "identity %s", id)
		}
		r.cacheSet(*ident)
		r.touch(id)

		return &provisioned{ident: *ident}, nil
	}

	pctx, cancel := context.WithTimeout(ctx, r.provisionTimeout)
	defer cancel()

	cred, created, err := r.prov.ProvisionOrFetch(pctx, id)
	if err != nil {
		return nil, err
	}

	// An identity the hub already knew needs no registration round, so it
	// starts active. A created one stays pending until its registration
	// event is delivered.
	status := StatusActive
	if created {
		status = StatusPending
	}

	now := r.clock().UTC()
	fresh := Identity{
		Id:            id,
		Credential:    cred,
		ProvisionedAt: now,
		LastSeenAt:    now,
		Status:        status,
	}

	if err = r.store.UpsertIdentity(ctx, fresh); err != nil {
		return nil, errors.Wrapf(err, "persisting identity %s", id)
	}
	r.cacheSet(fresh)

	p := &provisioned{ident: fresh}
	if created {
		p.first = 1
		log.Logger.Infof("provisioned new identity %s", id)
	}

	return p, nil
}

func (r *Resolver) validate(norm string) error {
	if norm == "" {
		return errors.Wrap(ErrInvalidCode, "the code is empty after normalisation")
	}

	if len(norm) < r.minCodeLength {
		return errors.Wrapf(ErrInvalidCode, "code %q is shorter than the minimum length of %d", norm, r.minCodeLength)
	}

	if len(norm) > maxCodeLength {
		return errors.Wrapf(ErrInvalidCode, "the code exceeds the maximum length of %d", maxCodeLength)
	}

	for _, c := range norm {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' && c != '_' {
			return errors.Wrapf(ErrInvalidCode, "code %q contains unsupported characters", norm)
		}
	}

	return nil
}

func (r *Resolver) isReserved(norm string) bool {
	for _, rc := range r.reserved {
		if norm == rc {
			return true
		}
	}

	return false
}

func (r *Resolver) nearReserved(norm string) (bool, string) {
	for _, rc := range r.reserved {
		if levenshtein.ComputeDistance(norm, rc) <= reservedCodeDistance {
			return true, rc
		}
	}

	return false, ""
}

func (r *Resolver) cached(id string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.cache[id]

	return ident, ok
}

func (r *Resolver) cacheSet(ident Identity) {
	r.mu.Lock()
	r.cache[ident.Id] = ident
	r.mu.Unlock()
}

// touch records that the identity was just seen. The write is off the hot
// path on purpose: a cached resolve must not wait on the store.
func (r *Resolver) touch(id string) {
	seenAt := r.clock().UTC()

	r.mu.Lock()
	if ident, ok := r.cache[id]; ok {
		ident.LastSeenAt = seenAt
		r.cache[id] = ident
	}
	r.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()

		if err := r.store.TouchIdentity(ctx, id, seenAt); err != nil {
			log.Logger.WithError(err).Debugf("could not record last seen time for identity %s", id)
		}
	}()
}
