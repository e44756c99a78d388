package scan

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Hub consumers expect millisecond precision and a literal Z suffix, so
// timestamps are always rendered from UTC.
const hubTimestampLayout = "2006-01-02T15:04:05.000Z"

type Kind string

const (
	KindRegistration   Kind = "identity-registration"
	KindQuantityUpdate Kind = "quantity-update"
)

// Event is a single observed scan. It is the unit that gets queued,
// retried and eventually delivered, so everything needed to rebuild the
// outbound payloads must live here.
type Event struct {
	Code            string    `json:"code"`
	OwnerIdentityId string    `json:"ownerIdentityId"`
	ObservedAt      time.Time `json:"observedAt"`
	QuantityDelta   int       `json:"quantityDelta"`
	Kind            Kind      `json:"kind"`
	SourceDeviceTag string    `json:"sourceDeviceTag"`
}

func (e Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "encoding scan event")
	}

	return b, nil
}

func DecodeEvent(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "decoding scan event")
	}

	return e, nil
}

// HubPayload is the wire form published to the hub. The identity here may
// differ from the event's owner when the owner was only resolved at
// delivery time.
type HubPayload struct {
	EventKind       string `json:"eventKind"`
	IdentityId      string `json:"identityId"`
	Code            string `json:"code"`
	QuantityDelta   int    `json:"quantityDelta"`
	Timestamp       string `json:"timestamp"`
	SourceDeviceTag string `json:"sourceDeviceTag,omitempty"`
}

func NewHubPayload(e Event, identityId string) HubPayload {
	return HubPayload{
		EventKind:       string(e.Kind),
		IdentityId:      identityId,
		Code:            e.Code,
		QuantityDelta:   e.QuantityDelta,
		Timestamp:       e.ObservedAt.UTC().Format(hubTimestampLayout),
		SourceDeviceTag: e.SourceDeviceTag,
	}
}

func (p HubPayload) Encode() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encoding hub payload")
	}

	return b, nil
}
