package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/speechtotext"
	"github.com/koscakluka/ema-live/internal/utils"
	"go.opentelemetry.io/otel/codes"
)

var ErrNotConnected = errors.New("deepgram stream is not connected")

// Transcribe opens the listen stream. Interim results are always requested
// so keywords can be spotted before the utterance ends.
func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	ctx, span := tracer.Start(ctx, "connect deepgram")
	defer span.End()

	options := &speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	conn, err := s.connectWebsocket(ctx, options.EncodingInfo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.connMu.Lock()
	s.conn = conn
	s.lastMsgTs = time.Now()
	s.done = make(chan struct{})
	done := s.done
	s.connMu.Unlock()

	s.accumulatedTranscript = ""
	s.unendedSegment = false

	silenceCtx, silenceCancel := context.WithCancel(context.Background())
	go s.generateSilence(silenceCtx, options.EncodingInfo)
	go func() {
		defer close(done)
		defer silenceCancel()
		s.readAndProcessMessages(conn, *options)
	}()
	return nil
}

func (s *TranscriptionClient) connectWebsocket(ctx context.Context, encoding audio.EncodingInfo) (*websocket.Conn, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	queryParams, err := encodingParams(encoding)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}
	queryParams.Set("model", s.model)
	queryParams.Set("language", s.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	for _, keyterm := range s.keyterms {
		queryParams.Add("keyterm", keyterm)
	}

	listenURL, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := s.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

func (s *TranscriptionClient) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return
	}

	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		logger.Warn("failed to write keep alive to deepgram", slog.String("error", err.Error()))
	}
}

// SendAudio forwards little-endian int16 PCM at the encoding passed to
// Transcribe.
func (s *TranscriptionClient) SendAudio(pcm []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}

	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sendSilence(chunk []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}

	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sinceLastMessage() time.Duration {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return time.Since(s.lastMsgTs)
}

// StopStream asks Deepgram to flush pending results and close the stream.
func (s *TranscriptionClient) StopStream() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		if err := s.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
			return fmt.Errorf("failed to close deepgram stream: %w", err)
		}
	}
	return nil
}

// Close ends the stream and waits briefly for the reader to finish.
func (s *TranscriptionClient) Close() error {
	stopErr := s.StopStream()

	s.connMu.Lock()
	conn, done := s.conn, s.done
	s.conn = nil
	s.connMu.Unlock()
	if conn == nil {
		return nil
	}

	closeErr := conn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return errors.Join(stopErr, closeErr)
}

func (s *TranscriptionClient) readAndProcessMessages(conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			s.connMu.Lock()
			closedLocally := s.conn != conn
			if !closedLocally {
				s.conn = nil
			}
			s.connMu.Unlock()

			if !closedLocally && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("failed to read deepgram websocket message", slog.String("error", err.Error()))
			}
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg, options)
		}
	}
}

func (s *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", slog.String("error", err.Error()))
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", slog.String("error", err.Error()))
			return
		}
		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if msgResp.IsFinal {
			if transcript != "" {
				s.accumulatedTranscript = strings.TrimSpace(s.accumulatedTranscript + " " + transcript)
				if options.PartialTranscriptionCallback != nil {
					options.PartialTranscriptionCallback(transcript)
				}
				if options.InterimTranscriptionCallback != nil {
					options.InterimTranscriptionCallback(s.accumulatedTranscript)
				}
			}
			if msgResp.SpeechFinal {
				s.onSpeechEnded(options)
			}
		} else if transcript != "" && options.InterimTranscriptionCallback != nil {
			options.InterimTranscriptionCallback(strings.TrimSpace(s.accumulatedTranscript + " " + transcript))
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment {
			s.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}
	}
}

func (s *TranscriptionClient) onSpeechEnded(options speechtotext.TranscriptionOptions) {
	s.unendedSegment = false
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""
	if fullTranscript != "" && options.TranscriptionCallback != nil {
		options.TranscriptionCallback(fullTranscript)
	}
}

// generateSilence keeps the stream alive while capture is gated: short
// gaps are filled with silence so endpointing still fires, longer ones
// fall back to KeepAlive messages.
func (s *TranscriptionClient) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const chunkDuration = 50 * time.Millisecond
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	chunk := make([]byte, encoding.SampleRate*encoding.Format.ByteSize()*int(chunkDuration/time.Millisecond)/1000)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	state := silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := s.sinceLastMessage()
			switch state {
			case silenceGeneratorStateWaiting:
				if idle > chunkDuration {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
				}

			case silenceGeneratorStateSilence:
				if idle < chunkDuration {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}
				if err := s.sendSilence(chunk); err != nil && !errors.Is(err, ErrNotConnected) {
					logger.Warn("failed to send silence to deepgram", slog.String("error", err.Error()))
				}

			case silenceGeneratorStateKeepAlive:
				if idle < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}
				if time.Since(*lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = utils.Ptr(time.Now())
					s.sendKeepAlive()
				}
			}
		}
	}
}
