package events

const (
	// KindAssistantSpeakingChanged identifies debounced playback activity changes.
	KindAssistantSpeakingChanged Kind = "assistant_playback.speaking_changed"
	// KindAssistantPlaybackInterrupted identifies ducked or stopped playback.
	KindAssistantPlaybackInterrupted Kind = "assistant_playback.interrupted"
)

// AssistantSpeakingChanged carries whether local playback is audible.
type AssistantSpeakingChanged struct {
	Base
	Speaking bool
}

// NewAssistantSpeakingChanged creates an assistant speaking changed event.
func NewAssistantSpeakingChanged(speaking bool) AssistantSpeakingChanged {
	return AssistantSpeakingChanged{Base: NewBase(KindAssistantSpeakingChanged), Speaking: speaking}
}

// AssistantPlaybackInterrupted carries what a barge-in did to playback.
// Action is "duck" or "hard_stop"; Source is "model" or "keyword".
type AssistantPlaybackInterrupted struct {
	Base
	Action string
	Source string
}

// NewAssistantPlaybackInterrupted creates an assistant playback interrupted event.
func NewAssistantPlaybackInterrupted(action, source string) AssistantPlaybackInterrupted {
	return AssistantPlaybackInterrupted{Base: NewBase(KindAssistantPlaybackInterrupted), Action: action, Source: source}
}
