package identity

import "time"

type Status string

// A freshly created identity is pending until its registration event has
// been delivered, then becomes active. Deactivation is terminal.
const (
	StatusPending     Status = "pending"
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

// Identity is a provisioned device or product identity, keyed by the
// normalised form of the code that first produced it.
type Identity struct {
	Id            string
	Credential    string
	ProvisionedAt time.Time
	LastSeenAt    time.Time
	Status        Status
}

func (i Identity) Active() bool {
	return i.Status == StatusActive
}

// Deactivated identities refuse resolution; pending ones already hold a
// usable credential and resolve like active ones.
func (i Identity) Deactivated() bool {
	return i.Status == StatusDeactivated
}
