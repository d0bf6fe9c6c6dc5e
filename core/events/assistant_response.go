package events

const (
	// KindAssistantResponseSegment identifies model transcript fragments.
	KindAssistantResponseSegment Kind = "assistant_response.segment"
	// KindAssistantResponseFinal identifies the flushed model utterance.
	KindAssistantResponseFinal Kind = "assistant_response.final"
)

// AssistantResponseSegment carries a model transcript fragment.
type AssistantResponseSegment struct {
	Base
	Segment string
}

// NewAssistantResponseSegment creates an assistant response segment event.
func NewAssistantResponseSegment(segment string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), Segment: segment}
}

// AssistantResponseFinal carries the model's utterance for the turn.
type AssistantResponseFinal struct {
	Base
	Transcript string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(transcript string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Transcript: transcript}
}
