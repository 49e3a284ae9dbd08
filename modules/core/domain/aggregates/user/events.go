package user

import "time"

type CreatedEvent struct {
	Result Snapshot
}

type UpdatedEvent struct {
	Before Snapshot
	Result Snapshot
}

type DeletedEvent struct {
	Result Snapshot
}

// SignInFailedEvent is published when a password or MFA check fails.
type SignInFailedEvent struct {
	Snapshot  Snapshot
	Method    string
	IP        string
	UserAgent string
	At        time.Time
}
