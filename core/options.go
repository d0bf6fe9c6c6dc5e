package orchestration

import (
	"context"
	"log/slog"
	"time"

	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/interruptions"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/speechtotext"
	"github.com/koscakluka/ema-live/core/tools"
	"github.com/koscakluka/ema-live/core/transport"
	"github.com/koscakluka/ema-live/core/video"
)

type SessionOption func(*Session)

// AudioInput delivers mono linear16 capture at audio.DefaultSampleRate.
type AudioInput interface {
	StartCapture(ctx context.Context, onAudio func(pcm []byte)) error
	StopCapture() error
}

// AudioOutput pulls mono samples at audio.PlaybackSampleRate from render
// for as long as playback runs.
type AudioOutput interface {
	StartPlayback(ctx context.Context, render func(out []float32)) error
	StopPlayback() error
}

// WithID overrides the generated session id, e.g. to share it with a
// memory sink created beforehand.
func WithID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.ID = id
		}
	}
}

func WithTransportFactory(factory transport.Factory) SessionOption {
	return func(s *Session) { s.transportFactory = factory }
}

func WithAudioInput(client AudioInput) SessionOption {
	return func(s *Session) { s.audioInput.Set(client) }
}

func WithAudioOutput(client AudioOutput) SessionOption {
	return func(s *Session) { s.audioOutput.Set(client) }
}

// WithTools offers tools to the model. Tools are fixed once the session
// starts.
func WithTools(toolset ...tools.Tool) SessionOption {
	return func(s *Session) {
		for _, tool := range toolset {
			if err := s.registry.Register(tool); err != nil {
				logger.Warn("tool not registered", slog.String("tool", tool.Name), slog.String("error", err.Error()))
			}
		}
	}
}

// WithSessionControlTools lets the model mute the microphone and end the
// session.
func WithSessionControlTools() SessionOption {
	return func(s *Session) { WithTools(sessionControlTools(s)...)(s) }
}

func WithInterruptionPolicy(policy interruptions.Policy, keywords ...string) SessionOption {
	return func(s *Session) {
		s.interruptionPolicy = policy
		s.stopKeywords = keywords
	}
}

// WithLocalTranscriber runs an extra speech-to-text stream on sent capture
// audio. Its transcripts are only used to spot stop keywords.
func WithLocalTranscriber(transcriber speechtotext.Transcriber) SessionOption {
	return func(s *Session) { s.transcriber = transcriber }
}

// WithCaptureBlockSize sets how many samples are sent per capture block.
func WithCaptureBlockSize(size int) SessionOption {
	return func(s *Session) {
		if size > 0 {
			s.captureBlockSize = size
		}
	}
}

func WithSchedulerConfig(config playback.Config) SessionOption {
	return func(s *Session) { s.schedulerConfig = config }
}

func WithReconnectDelay(delay time.Duration) SessionOption {
	return func(s *Session) {
		if delay >= 0 {
			s.reconnectDelay = delay
		}
	}
}

// WithSessionConfig sets the base connection config. The system
// instruction is extended with conversation memory on every connect, and
// tools and transcription are always filled in by the session.
func WithSessionConfig(config transport.SessionConfig) SessionOption {
	return func(s *Session) { s.config = config }
}

// WithMemorySink receives every utterance flushed at a turn boundary.
func WithMemorySink(sink conversations.Sink) SessionOption {
	return func(s *Session) { s.memorySink = sink }
}

func WithMemory(memory *conversations.Memory) SessionOption {
	return func(s *Session) {
		if memory != nil {
			s.memory = memory
		}
	}
}

// WithVideoSource pumps frames from source while video is enabled.
func WithVideoSource(source video.FrameSource, opts ...video.PumpOption) SessionOption {
	return func(s *Session) {
		s.videoSource = source
		s.videoOptions = opts
	}
}

type StartOptions struct {
	onSpeakingChanged func(isSpeaking bool)
	onUserVolume      func(level float64)
	onToolInvoked     func(name, args string)
	onTranscript      func(role, text string)
	onClosed          func(reason string)
	onEvent           func(event events.Event)
}

type StartOption func(*StartOptions)

// WithSpeakingChangedCallback reports debounced changes of local playback
// activity.
func WithSpeakingChangedCallback(callback func(isSpeaking bool)) StartOption {
	return func(o *StartOptions) { o.onSpeakingChanged = callback }
}

// WithUserVolumeCallback receives the RMS level of every captured block,
// including muted and paused ones.
//
// The callback runs on the capture path and should not block.
func WithUserVolumeCallback(callback func(level float64)) StartOption {
	return func(o *StartOptions) { o.onUserVolume = callback }
}

// WithToolInvokedCallback is called before a validated tool call runs.
func WithToolInvokedCallback(callback func(name, args string)) StartOption {
	return func(o *StartOptions) { o.onToolInvoked = callback }
}

// WithTranscriptCallback receives each complete utterance at the end of a
// turn. role is "user" or "model".
func WithTranscriptCallback(callback func(role, text string)) StartOption {
	return func(o *StartOptions) { o.onTranscript = callback }
}

// WithClosedCallback is called exactly once when the session closes.
func WithClosedCallback(callback func(reason string)) StartOption {
	return func(o *StartOptions) { o.onClosed = callback }
}

// WithEventCallback receives every session event, before the more specific
// callbacks.
func WithEventCallback(callback func(event events.Event)) StartOption {
	return func(o *StartOptions) { o.onEvent = callback }
}
