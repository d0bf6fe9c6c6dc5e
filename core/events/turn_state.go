package events

const (
	// KindTurnCompleted identifies the end of a model turn.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnInterrupted identifies a model turn the user talked over.
	KindTurnInterrupted Kind = "turn_state.interrupted"
)

// TurnCompleted marks the end of the current turn.
type TurnCompleted struct{ Base }

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted() TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted)}
}

// TurnInterrupted marks the current turn as interrupted by the user.
type TurnInterrupted struct{ Base }

// NewTurnInterrupted creates a turn interrupted event.
func NewTurnInterrupted() TurnInterrupted {
	return TurnInterrupted{Base: NewBase(KindTurnInterrupted)}
}
