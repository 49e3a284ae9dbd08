package mediator

// Change is the result of a command that modified one entity.
// Before is the zero value for creations; After is the zero value for deletions.
type Change[T any] struct {
	ID     string
	Before T
	After  T
}

// Audited is implemented by command results the audit behavior can diff.
type Audited interface {
	AuditID() string
	Snapshots() (before, after any)
}

func (c Change[T]) AuditID() string {
	return c.ID
}

func (c Change[T]) Snapshots() (any, any) {
	return c.Before, c.After
}
