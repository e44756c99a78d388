package scan

import (
	"context"
	"strings"
	"sync"
	"time"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/identity"
	"fieldscan/scanner-relay/log"
	"fieldscan/scanner-relay/prometheus"

	"github.com/pkg/errors"
)

type Status string

const (
	Accepted         Status = "accepted"
	QueuedOffline    Status = "accepted-queued-offline"
	Rejected         Status = "rejected"
	TestCodeIgnored  Status = "test-code-ignored"
	DuplicateIgnored Status = "duplicate-ignored"
)

// Submission is a raw scan as reported by the device, before any
// normalisation or resolution has happened.
type Submission struct {
	Code            string `json:"code"`
	QuantityDelta   int    `json:"quantity"`
	SourceDeviceTag string `json:"sourceDeviceTag"`
}

type Result struct {
	Status     Status `json:"status"`
	Reason     string `json:"reason,omitempty"`
	IdentityId string `json:"identityId,omitempty"`
	EntryId    int64  `json:"-"`
}

type Resolver interface {
	Resolve(ctx context.Context, code string) (identity.Resolution, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, ev Event) (int64, error)
}

// Connectivity lets the service hint the delivery side that a fresh
// entry is waiting. Nudge must never block.
type Connectivity interface {
	Online() bool
	Nudge()
}

// Service accepts scans from the device and turns them into queued
// events. Every accepted scan is persisted before anything is sent
// anywhere, whether the unit is online or not.
type Service struct {
	resolver Resolver
	store    Enqueuer
	net      Connectivity
	cfg      *config.Config
	clock    func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewService(cfg *config.Config, resolver Resolver, store Enqueuer, net Connectivity) *Service {
	return &Service{
		resolver: resolver,
		store:    store,
		net:      net,
		cfg:      cfg,
		clock:    time.Now,
		lastSeen: map[string]time.Time{},
	}
}

// Ingest resolves, deduplicates and queues one scan. A non-nil error
// means the relay itself failed; business refusals come back as a
// Rejected result with a nil error.
func (s *Service) Ingest(ctx context.Context, sub Submission) (Result, error) {
	res, err := s.resolver.Resolve(ctx, sub.Code)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCode),
			errors.Is(err, identity.ErrDeactivated),
			errors.Is(err, identity.ErrProvisionRejected):
			log.Logger.WithError(err).Debugf("refused scan of code %q", sub.Code)

			return s.record(Result{Status: Rejected, Reason: err.Error()}), nil
		default:
			// Resolution needs the network but the scan must not be
			// lost. Queue it without an owner and let the delivery
			// worker resolve it once provisioning is reachable again.
			log.Logger.WithError(err).Warnf("queueing scan of code %q unresolved", sub.Code)
			res = identity.Resolution{}
		}
	}

	if res.TestCode {
		log.Logger.Infof("ignored reserved test code %q", sub.Code)

		return s.record(Result{Status: TestCodeIgnored}), nil
	}

	dedupKey := res.IdentityId
	if dedupKey == "" {
		dedupKey = identity.Normalize(sub.Code)
	}
	if s.withinCooldown(dedupKey) {
		return s.record(Result{Status: DuplicateIgnored, IdentityId: res.IdentityId}), nil
	}

	kind := KindQuantityUpdate
	if res.FirstSeen {
		kind = KindRegistration
	}

	qty := sub.QuantityDelta
	if qty == 0 {
		qty = 1
	}

	tag := sub.SourceDeviceTag
	if tag == "" {
		tag = s.cfg.SourceDeviceTag
	}

	ev := Event{
		Code:            strings.TrimSpace(sub.Code),
		OwnerIdentityId: res.IdentityId,
		ObservedAt:      s.clock().UTC(),
		QuantityDelta:   qty,
		Kind:            kind,
		SourceDeviceTag: tag,
	}

	id, err := s.store.Enqueue(ctx, ev)
	if err != nil {
		prometheus.CountScanIngested("error")

		return Result{}, errors.Wrap(err, "queueing scan")
	}

	s.markSeen(dedupKey)

	result := Result{Status: QueuedOffline, IdentityId: res.IdentityId, EntryId: id}
	if s.net.Online() {
		result.Status = Accepted
		s.net.Nudge()
	}

	return s.record(result), nil
}

func (s *Service) record(r Result) Result {
	prometheus.CountScanIngested(string(r.Status))

	return r
}

func (s *Service) withinCooldown(key string) bool {
	cooldown := s.cfg.GetDedupCooldown()
	if cooldown <= 0 || key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seen, ok := s.lastSeen[key]

	return ok && s.clock().Sub(seen) < cooldown
}

func (s *Service) markSeen(key string) {
	if s.cfg.GetDedupCooldown() <= 0 || key == "" {
		return
	}

	s.mu.Lock()
	s.lastSeen[key] = s.clock()
	s.mu.Unlock()
}
