package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/speechtotext"
)

type fakeListenServer struct {
	t        *testing.T
	messages []string

	mu       sync.Mutex
	query    string
	auth     string
	audio    int
	controls []string
	closed   chan struct{}
}

func newFakeListenServer(t *testing.T, messages ...string) (*fakeListenServer, *httptest.Server) {
	fake := &fakeListenServer{t: t, messages: messages, closed: make(chan struct{})}
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		fake.query = r.URL.RawQuery
		fake.auth = r.Header.Get("Authorization")
		fake.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		defer close(fake.closed)

		for _, message := range fake.messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				return
			}
		}
		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fake.mu.Lock()
			if msgType == websocket.BinaryMessage {
				fake.audio++
			} else {
				fake.controls = append(fake.controls, string(msg))
			}
			fake.mu.Unlock()
		}
	}))
	t.Cleanup(server.Close)
	return fake, server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestTranscribeReportsRunningAndFinalTranscripts(t *testing.T) {
	_, server := newFakeListenServer(t,
		`{"type":"SpeechStarted"}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"please"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"please stop"}]}}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"now"}]}}`,
		`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"now"}]}}`,
	)

	var mu sync.Mutex
	var interim, finals []string
	started := 0
	client := NewClient(WithAPIKey("key"), WithURL(wsURL(server)))
	err := client.Transcribe(context.Background(),
		speechtotext.WithInterimTranscriptionCallback(func(transcript string) {
			mu.Lock()
			interim = append(interim, transcript)
			mu.Unlock()
		}),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			mu.Lock()
			finals = append(finals, transcript)
			mu.Unlock()
		}),
		speechtotext.WithSpeechStartedCallback(func() {
			mu.Lock()
			started++
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(finals) == 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	expectedInterim := []string{"please", "please stop", "please stop now", "please stop now"}
	if strings.Join(interim, "|") != strings.Join(expectedInterim, "|") {
		t.Fatalf("expected interim %q, got %q", expectedInterim, interim)
	}
	if len(finals) != 1 || finals[0] != "please stop now" {
		t.Fatalf("expected one final transcript, got %q", finals)
	}
	if started != 1 {
		t.Fatalf("expected speech started once, got %d", started)
	}
}

func TestTranscribeSendsCredentialsAndKeyterms(t *testing.T) {
	fake, server := newFakeListenServer(t)
	client := NewClient(WithAPIKey("secret"), WithURL(wsURL(server)), WithKeyterms("stop", "shut up"))

	if err := client.Transcribe(context.Background(), speechtotext.WithEncodingInfo(audio.GetDefaultEncodingInfo())); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := client.SendAudio(make([]byte, 320)); err != nil {
		t.Fatalf("expected audio to be sent, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}

	select {
	case <-fake.closed:
	case <-time.After(time.Second):
		t.Fatalf("expected server connection to close")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.auth != "Token secret" {
		t.Fatalf("expected token auth header, got %q", fake.auth)
	}
	for _, param := range []string{"keyterm=stop", "keyterm=shut+up", "sample_rate=16000", "encoding=linear16", "interim_results=true"} {
		if !strings.Contains(fake.query, param) {
			t.Fatalf("expected query to contain %s, got %s", param, fake.query)
		}
	}
	if fake.audio < 1 {
		t.Fatalf("expected audio to reach the server")
	}
	if len(fake.controls) == 0 || !strings.Contains(fake.controls[len(fake.controls)-1], "CloseStream") {
		t.Fatalf("expected CloseStream before close, got %q", fake.controls)
	}

	if err := client.SendAudio([]byte{0, 0}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected after close, got %v", err)
	}
}

func TestTranscribeRequiresAPIKey(t *testing.T) {
	t.Setenv(apiKeyEnv, "")
	client := NewClient(WithURL("ws://127.0.0.1:1"))
	if err := client.Transcribe(context.Background()); err == nil {
		t.Fatalf("expected missing api key error")
	}
}

func TestNewClientFallsBackToEnvironmentKey(t *testing.T) {
	t.Setenv(apiKeyEnv, "from-env")
	if client := NewClient(); client.apiKey != "from-env" {
		t.Fatalf("expected key from environment, got %q", client.apiKey)
	}
	if client := NewClient(WithAPIKey("explicit")); client.apiKey != "explicit" {
		t.Fatalf("expected explicit key, got %q", client.apiKey)
	}
}

func TestEncodingParamsRejectsUnsupportedRates(t *testing.T) {
	if _, err := encodingParams(audio.EncodingInfo{SampleRate: 22050, Format: audio.EncodingLinear16}); err == nil {
		t.Fatalf("expected unsupported sample rate error")
	}
	if _, err := encodingParams(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}); err == nil {
		t.Fatalf("expected mulaw to require 8 kHz")
	}
}
