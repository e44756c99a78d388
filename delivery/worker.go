package delivery

import (
	"context"
	"time"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/identity"
	"fieldscan/scanner-relay/log"
	"fieldscan/scanner-relay/outbox"
	"fieldscan/scanner-relay/prometheus"
	"fieldscan/scanner-relay/scan"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// abandonedBuffer bounds the notification channel; a slow consumer loses
// notifications, never deliveries.
const abandonedBuffer = 16

// Abandoned is emitted when an entry exhausts its retry budget and is
// moved to the dead letter table. The raw payload is carried so that an
// operator can recover the scan by hand.
type Abandoned struct {
	EntryId    int64
	EventJson  []byte
	RetryCount int
	Reason     string
}

type store interface {
	LeaseBatch(ctx context.Context) (*outbox.Batch, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, entry *outbox.Entry, reason string, nextAttemptAt time.Time) (int, bool, error)
	ReleaseLease(ctx context.Context, leaseId uuid.UUID) error
	ActivateIdentity(ctx context.Context, id string) error
}

type resolver interface {
	Resolve(ctx context.Context, code string) (identity.Resolution, error)
}

// Worker drains the outbox. The hub is the primary path: an entry counts
// as delivered once the hub accepted it, even if a secondary sink (the
// management backend) failed, because secondary sinks tolerate replays
// and must not hold the queue hostage.
type Worker struct {
	cfg       *config.Config
	store     store
	resolver  resolver
	primary   Sink
	secondary []Sink
	backoff   Backoff
	clock     func() time.Time
	abandoned chan Abandoned
}

func NewWorker(cfg *config.Config, st store, resolver resolver, primary Sink, secondary ...Sink) *Worker {
	return &Worker{
		cfg:       cfg,
		store:     st,
		resolver:  resolver,
		primary:   primary,
		secondary: secondary,
		backoff:   Backoff{Base: cfg.GetBackoffBase(), Cap: cfg.GetBackoffCap()},
		clock:     time.Now,
		abandoned: make(chan Abandoned, abandonedBuffer),
	}
}

// Abandoned exposes the dead letter notifications.
func (w *Worker) Abandoned() <-chan Abandoned {
	return w.abandoned
}

// Run drains the outbox on every tick, and immediately whenever the
// connectivity monitor signals that the uplink came back.
func (w *Worker) Run(ctx context.Context, signals <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.GetDrainInterval())
	defer ticker.Stop()

	log.Logger.Debug("the delivery worker has started")

	for {
		select {
		case <-ctx.Done():
			log.Logger.Debug("the delivery worker is exiting")
			return
		case <-signals:
			w.drain(ctx)
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain leases one batch and works through it entry by entry, oldest
// first.
func (w *Worker) drain(ctx context.Context) {
	batch, err := w.store.LeaseBatch(ctx)
	if err != nil {
		if errors.Is(err, outbox.ErrNoEntries) {
			return
		}
		log.Logger.WithError(err).Error("an unexpected error occurred when leasing a batch from the outbox")
		return
	}

	for i, entry := range batch.Entries {
		select {
		case <-ctx.Done():
			w.releaseRemainder(batch, i)
			return
		default:
		}

		w.process(ctx, entry)
	}
}

// releaseRemainder hands untouched entries back on shutdown so the next
// start does not have to wait out the stale lease window. Entries already
// delivered or requeued no longer carry the lease, so releasing by lease
// id only affects the remainder.
func (w *Worker) releaseRemainder(batch *outbox.Batch, from int) {
	if from >= len(batch.Entries) {
		return
	}

	rctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := w.store.ReleaseLease(rctx, batch.LeaseId); err != nil {
		log.Logger.WithError(err).Error("could not release the lease during shutdown; the entries will be reclaimed once the lease goes stale")
	}
}

func (w *Worker) process(ctx context.Context, entry *outbox.Entry) {
	ev, err := entry.Event()
	if err != nil {
		w.fail(ctx, entry, errors.Wrapf(err, "the queued payload of entry %d is not decodable", entry.Id).Error())
		return
	}

	dctx, cancel := context.WithTimeout(ctx, w.cfg.GetDeliveryTimeout())
	defer cancel()

	owner, err := w.resolver.Resolve(dctx, ev.Code)
	if err != nil {
		w.fail(ctx, entry, errors.Wrapf(err, "resolving the owner of code %q", ev.Code).Error())
		return
	}

	if owner.TestCode {
		// the code joined the reserved list after the scan was queued
		log.Logger.Infof("dropping queued scan of reserved test code %q", ev.Code)
		if err = w.store.MarkDelivered(ctx, entry.Id); err != nil {
			log.Logger.WithError(err).Errorf("could not drop the test code entry %d", entry.Id)
		}
		return
	}

	if ev.OwnerIdentityId == "" {
		// queued during a provisioning outage; the owner is known only now
		ev.OwnerIdentityId = owner.IdentityId
		if owner.FirstSeen && ev.Kind != scan.KindRegistration {
			ev.Kind = scan.KindRegistration
		}
	}

	if err = w.deliver(dctx, w.primary, ev, owner); err != nil {
		w.fail(ctx, entry, err.Error())
		return
	}

	for _, s := range w.secondary {
		if err = w.deliver(dctx, s, ev, owner); err != nil {
			log.Logger.WithError(err).Warnf("the secondary path %q failed for entry %d; the scan is already on the hub and will not be retried", s.Name(), entry.Id)
		}
	}

	if err = w.store.MarkDelivered(ctx, entry.Id); err != nil {
		log.Logger.WithError(err).Errorf("could not mark entry %d as delivered; it may be delivered again", entry.Id)
		return
	}

	if ev.Kind == scan.KindRegistration {
		// the identity was provisioned as pending; its registration has now
		// reached the hub, so it graduates to active
		if err = w.store.ActivateIdentity(ctx, owner.IdentityId); err != nil {
			log.Logger.WithError(err).Warnf("could not activate identity %s after delivering its registration", owner.IdentityId)
		}
	}

	log.Logger.WithFields(logrus.Fields{"entry_id": entry.Id, "identity": owner.IdentityId}).Debug("delivered a queued scan")
}

func (w *Worker) deliver(ctx context.Context, s Sink, ev scan.Event, owner identity.Resolution) error {
	if err := s.Deliver(ctx, ev, owner); err != nil {
		prometheus.CountDeliveryAttempt(s.Name(), "failure")
		return err
	}

	prometheus.CountDeliveryAttempt(s.Name(), "success")

	return nil
}

// fail records the attempt, schedules the retry and emits a notification
// if the entry was abandoned in the process.
func (w *Worker) fail(ctx context.Context, entry *outbox.Entry, reason string) {
	next := w.backoff.NextAttempt(w.clock().UTC(), entry.RetryCount)

	retryCount, abandoned, err := w.store.MarkFailed(ctx, entry, reason, next)
	if err != nil {
		log.Logger.WithError(err).Errorf("could not record the failed attempt for entry %d", entry.Id)
		return
	}

	if abandoned {
		w.notifyAbandoned(entry, retryCount, reason)
		return
	}

	log.Logger.WithFields(logrus.Fields{
		"entry_id":    entry.Id,
		"retry_count": retryCount,
		"next_at":     next,
	}).Warnf("delivery failed: %s", reason)
}

func (w *Worker) notifyAbandoned(entry *outbox.Entry, retryCount int, reason string) {
	log.Logger.WithFields(logrus.Fields{
		"entry_id":    entry.Id,
		"retry_count": retryCount,
		"payload":     string(entry.EventJson),
	}).Errorf("delivery abandoned after %d attempts: %s", retryCount, reason)

	select {
	case w.abandoned <- Abandoned{
		EntryId:    entry.Id,
		EventJson:  entry.EventJson,
		RetryCount: retryCount,
		Reason:     reason,
	}:
	default:
		log.Logger.Warnf("the abandoned notification channel is full, dropping the notification for entry %d", entry.Id)
	}
}
