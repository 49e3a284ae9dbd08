package tenant

// CreatedEvent is published after a tenant is provisioned and committed.
type CreatedEvent struct {
	Result Snapshot
}

type UpdatedEvent struct {
	Before Snapshot
	Result Snapshot
}
