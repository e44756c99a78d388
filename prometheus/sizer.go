package prometheus

type Sizer interface {
	PendingCount() (uint, error)
	DeadLetterCount() (uint, error)
	IdentityCount() (uint, error)
}
