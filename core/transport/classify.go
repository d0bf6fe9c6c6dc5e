package transport

import (
	"encoding/json"
	"errors"

	"github.com/koscakluka/ema-live/core/audio"
)

// InboundMessage is the transport independent shape of a single server
// message. It doubles as the wire format of the websocket relay.
type InboundMessage struct {
	SetupComplete       bool                   `json:"setupComplete,omitempty"`
	Audio               []audio.WireAudioFrame `json:"audio,omitempty"`
	Interrupted         bool                   `json:"interrupted,omitempty"`
	TurnComplete        bool                   `json:"turnComplete,omitempty"`
	InputTranscription  string                 `json:"inputTranscription,omitempty"`
	OutputTranscription string                 `json:"outputTranscription,omitempty"`
	ToolCalls           []ToolCall             `json:"toolCall,omitempty"`
	Error               string                 `json:"error,omitempty"`
}

type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Classify decomposes a message into events in the order they have to be
// acted upon. An interruption drops audio carried by the same message and
// TurnComplete always comes after the transcript fragments it closes.
func Classify(msg InboundMessage) []ServerEvent {
	var events []ServerEvent

	if msg.Interrupted {
		events = append(events, Interrupted{})
	} else {
		for _, frame := range msg.Audio {
			if frame.Data == "" {
				continue
			}
			events = append(events, AudioChunk{Frame: frame})
		}
	}

	if msg.InputTranscription != "" {
		events = append(events, InputTranscript{Text: msg.InputTranscription})
	}
	if msg.OutputTranscription != "" {
		events = append(events, OutputTranscript{Text: msg.OutputTranscription})
	}

	for _, call := range msg.ToolCalls {
		args := call.Args
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		events = append(events, ToolCallRequest{ID: call.ID, Name: call.Name, Args: args})
	}

	if msg.TurnComplete {
		events = append(events, TurnComplete{})
	}

	if msg.Error != "" {
		events = append(events, Error{Err: ClassifyError(errors.New(msg.Error))})
	}

	return events
}
