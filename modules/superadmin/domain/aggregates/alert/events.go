package alert

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
