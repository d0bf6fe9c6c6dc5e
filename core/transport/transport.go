package transport

import (
	"context"
	"encoding/json"

	"github.com/koscakluka/ema-live/core/audio"
)

// Transport is a duplex session with a live model.
//
// Sends never block the caller; each implementation owns an outbound queue
// and drops frames when it is full. The Handler passed to Connect is called
// from a single reader goroutine in arrival order.
type Transport interface {
	// Connect dials the remote and returns once it reported ready.
	Connect(ctx context.Context, config SessionConfig, handler Handler) error
	SendAudio(frame audio.WireAudioFrame) error
	SendVideoFrame(jpeg []byte) error
	SendToolResponse(response ToolResponse) error
	// Close is idempotent and safe to call from inside the Handler.
	Close() error
	// Done is closed once the reader has exited.
	Done() <-chan struct{}
}

type Handler func(event ServerEvent)

// Factory creates a fresh, unconnected Transport. A transport is never
// reused across reconnects.
type Factory func() Transport

type Modality string

const (
	ModalityAudio Modality = "AUDIO"
	ModalityText  Modality = "TEXT"
)

type SessionConfig struct {
	APIKey string
	Model  string
	Voice  string

	ResponseModalities []Modality
	SystemInstruction  string
	Tools              []ToolDeclaration

	InputTranscription  bool
	OutputTranscription bool

	InputSampleRate  int
	OutputSampleRate int
}

type ToolDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type ToolResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}
