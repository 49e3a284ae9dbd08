package session

// CreatedEvent is published after a sign-in completes.
type CreatedEvent struct {
	Result Session
	Method string
}

type DeletedEvent struct {
	Token string
}
