package events

const (
	// KindSessionStateChanged identifies session state transitions.
	KindSessionStateChanged Kind = "session.state_changed"
	// KindSessionReconnected identifies a completed reconnect.
	KindSessionReconnected Kind = "session.reconnected"
	// KindSessionClosed identifies the terminal session event.
	KindSessionClosed Kind = "session.closed"
)

// SessionStateChanged carries a session state transition.
type SessionStateChanged struct {
	Base
	From string
	To   string
}

// NewSessionStateChanged creates a session state changed event.
func NewSessionStateChanged(from, to string) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), From: from, To: to}
}

// SessionReconnected marks a new connection replacing the previous one.
type SessionReconnected struct {
	Base
	Reason string
}

// NewSessionReconnected creates a session reconnected event.
func NewSessionReconnected(reason string) SessionReconnected {
	return SessionReconnected{Base: NewBase(KindSessionReconnected), Reason: reason}
}

// SessionClosed marks the end of the session.
type SessionClosed struct {
	Base
	Reason string
}

// NewSessionClosed creates a session closed event.
func NewSessionClosed(reason string) SessionClosed {
	return SessionClosed{Base: NewBase(KindSessionClosed), Reason: reason}
}
