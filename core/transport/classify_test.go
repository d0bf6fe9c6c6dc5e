package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
)

func TestClassifyOrdersEventsWithTurnCompleteLast(t *testing.T) {
	msg := InboundMessage{
		TurnComplete:        true,
		OutputTranscription: "world",
		InputTranscription:  "hello",
		Audio:               []audio.WireAudioFrame{{Data: "AAA=", MimeType: "audio/pcm;rate=24000"}},
		ToolCalls:           []ToolCall{{ID: "1", Name: "navigate"}},
	}

	events := Classify(msg)

	expected := []string{"AudioChunk", "InputTranscript", "OutputTranscript", "ToolCallRequest", "TurnComplete"}
	if len(events) != len(expected) {
		t.Fatalf("expected %d events, got %d: %#v", len(expected), len(events), events)
	}
	for i, event := range events {
		if got := eventName(event); got != expected[i] {
			t.Fatalf("expected event %d to be %s, got %s", i, expected[i], got)
		}
	}

	call := events[3].(ToolCallRequest)
	if string(call.Args) != "{}" {
		t.Fatalf("expected missing args to default to an empty object, got %s", call.Args)
	}
}

func TestClassifyInterruptedDropsAudioOfSameMessage(t *testing.T) {
	events := Classify(InboundMessage{
		Interrupted: true,
		Audio:       []audio.WireAudioFrame{{Data: "AAA=", MimeType: "audio/pcm;rate=24000"}},
	})

	if len(events) != 1 {
		t.Fatalf("expected only the interruption, got %#v", events)
	}
	if _, ok := events[0].(Interrupted); !ok {
		t.Fatalf("expected Interrupted, got %T", events[0])
	}
}

func TestClassifyKeepsToolCallsIndependentOfOtherFields(t *testing.T) {
	events := Classify(InboundMessage{
		Interrupted: true,
		ToolCalls: []ToolCall{
			{ID: "a", Name: "play_track", Args: json.RawMessage(`{"track":"x"}`)},
			{ID: "b", Name: "navigate", Args: json.RawMessage(`{"page":"home"}`)},
		},
	})

	if len(events) != 3 {
		t.Fatalf("expected interruption plus two tool calls, got %#v", events)
	}
	if events[1].(ToolCallRequest).ID != "a" || events[2].(ToolCallRequest).ID != "b" {
		t.Fatalf("expected tool calls in arrival order")
	}
}

func TestClassifyEmptyMessageHasNoEvents(t *testing.T) {
	if events := Classify(InboundMessage{SetupComplete: true}); len(events) != 0 {
		t.Fatalf("expected no events, got %#v", events)
	}
}

func TestClassifyRemoteErrorIsClassified(t *testing.T) {
	events := Classify(InboundMessage{Error: "API key not valid"})

	if len(events) != 1 {
		t.Fatalf("expected a single error event, got %#v", events)
	}
	errEvent, ok := events[0].(Error)
	if !ok || !errors.Is(errEvent.Err, ErrFatalAuth) {
		t.Fatalf("expected auth error event, got %#v", events[0])
	}
}

func TestInboundMessageDecodesRelayFrame(t *testing.T) {
	raw := `{"audio":[{"data":"AAA=","mimeType":"audio/pcm;rate=24000"}],"toolCall":[{"id":"7","name":"click","args":{"x":1}}],"turnComplete":true}`

	var msg InboundMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("expected frame to decode, got %v", err)
	}
	if len(msg.Audio) != 1 || len(msg.ToolCalls) != 1 || !msg.TurnComplete {
		t.Fatalf("expected audio, tool call and turn complete, got %+v", msg)
	}
	if string(msg.ToolCalls[0].Args) != `{"x":1}` {
		t.Fatalf("expected raw args to be kept, got %s", msg.ToolCalls[0].Args)
	}
}

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "unauthorized text", err: errors.New("websocket: bad handshake (401 Unauthorized)"), expected: ErrFatalAuth},
		{name: "api key text", err: errors.New("API key not valid. Please pass a valid API key."), expected: ErrFatalAuth},
		{name: "policy violation close", err: &websocket.CloseError{Code: websocket.ClosePolicyViolation}, expected: ErrFatalAuth},
		{name: "invalid payload close", err: &websocket.CloseError{Code: websocket.CloseInvalidFramePayloadData}, expected: ErrFatalConfig},
		{name: "unknown model", err: errors.New("models/unknown is not found for API version v1beta"), expected: ErrFatalConfig},
		{name: "reset", err: errors.New("read tcp: connection reset by peer"), expected: ErrTransientNetwork},
		{name: "abnormal close", err: &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, expected: ErrTransientNetwork},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			classified := ClassifyError(tc.err)
			if !errors.Is(classified, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, classified)
			}
			if !errors.Is(classified, tc.err) {
				t.Fatalf("expected original error to stay reachable")
			}
		})
	}
}

func TestClassifyErrorKeepsExistingClassification(t *testing.T) {
	err := fmt.Errorf("failed to dispatch: %w", ErrProtocol)
	if classified := ClassifyError(err); classified != err {
		t.Fatalf("expected already classified error to be returned unchanged")
	}
	if ClassifyError(nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(ClassifyError(errors.New("403 Forbidden"))) {
		t.Fatalf("expected forbidden to be fatal")
	}
	if IsFatal(ClassifyError(errors.New("i/o timeout"))) {
		t.Fatalf("expected timeout to be transient")
	}
}

func TestConnectionErrorUnwraps(t *testing.T) {
	err := &ConnectionError{Op: "dial", Endpoint: "wss://example", Err: ClassifyError(errors.New("401"))}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || !errors.Is(err, ErrFatalAuth) {
		t.Fatalf("expected connection error to expose its classified cause")
	}
}

func eventName(event ServerEvent) string {
	switch event.(type) {
	case AudioChunk:
		return "AudioChunk"
	case Interrupted:
		return "Interrupted"
	case TurnComplete:
		return "TurnComplete"
	case InputTranscript:
		return "InputTranscript"
	case OutputTranscript:
		return "OutputTranscript"
	case ToolCallRequest:
		return "ToolCallRequest"
	case Error:
		return "Error"
	case Closed:
		return "Closed"
	default:
		return "unknown"
	}
}
