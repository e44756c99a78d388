package delivery

import (
	"context"

	"fieldscan/scanner-relay/identity"
	"fieldscan/scanner-relay/scan"

	"github.com/pkg/errors"
)

// Sink is one outbound path for a queued scan. The owning identity is
// resolved once per entry by the worker and handed to every sink, so a
// credential never has to travel inside the stored event.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev scan.Event, owner identity.Resolution) error
}

type hubSender interface {
	Send(identityId string, credential string, p scan.HubPayload) error
}

// HubSink publishes events to the hub on the owning identity's
// connection.
type HubSink struct {
	hub hubSender
}

func NewHubSink(hub hubSender) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string {
	return "hub"
}

func (s *HubSink) Deliver(ctx context.Context, ev scan.Event, owner identity.Resolution) error {
	if err := s.hub.Send(owner.IdentityId, owner.Credential, scan.NewHubPayload(ev, owner.IdentityId)); err != nil {
		return errors.Wrapf(err, "publishing to the hub as %s", owner.IdentityId)
	}

	return nil
}

type apiClient interface {
	SendScan(ctx context.Context, identityId string, code string, quantity int) error
	ConfirmRegistration(ctx context.Context, identityId string) error
}

// BackendSink notifies the management backend about a delivered scan,
// or confirms the registration when the event marks an identity's
// first sighting.
type BackendSink struct {
	api apiClient
}

func NewBackendSink(api apiClient) *BackendSink {
	return &BackendSink{api: api}
}

func (s *BackendSink) Name() string {
	return "backend"
}

func (s *BackendSink) Deliver(ctx context.Context, ev scan.Event, owner identity.Resolution) error {
	if ev.Kind == scan.KindRegistration {
		return s.api.ConfirmRegistration(ctx, owner.IdentityId)
	}

	return s.api.SendScan(ctx, owner.IdentityId, ev.Code, ev.QuantityDelta)
}
