package transport

import (
	"encoding/json"

	"github.com/koscakluka/ema-live/core/audio"
)

// ServerEvent is one of AudioChunk, Interrupted, TurnComplete,
// InputTranscript, OutputTranscript, ToolCallRequest, Error or Closed.
type ServerEvent interface {
	serverEvent()
}

type AudioChunk struct {
	Frame audio.WireAudioFrame
}

// Interrupted reports that the remote detected the user barging in.
type Interrupted struct{}

type TurnComplete struct{}

type InputTranscript struct {
	Text string
}

type OutputTranscript struct {
	Text string
}

type ToolCallRequest struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Error is a non-terminal error reported by the remote or the transport.
// Use IsFatal to decide whether the session can continue.
type Error struct {
	Err error
}

// Closed is emitted exactly once when the session ends.
type Closed struct {
	Reason string
	Err    error
}

func (AudioChunk) serverEvent()       {}
func (Interrupted) serverEvent()      {}
func (TurnComplete) serverEvent()     {}
func (InputTranscript) serverEvent()  {}
func (OutputTranscript) serverEvent() {}
func (ToolCallRequest) serverEvent()  {}
func (Error) serverEvent()            {}
func (Closed) serverEvent()           {}
