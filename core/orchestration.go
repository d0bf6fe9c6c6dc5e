package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/capture"
	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/interruptions"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/speechtotext"
	"github.com/koscakluka/ema-live/core/tools"
	"github.com/koscakluka/ema-live/core/transcript"
	"github.com/koscakluka/ema-live/core/transport"
	"github.com/koscakluka/ema-live/core/video"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultReconnectDelay = 500 * time.Millisecond

	transportCloseTimeout = 5 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrSessionClosed  = errors.New("session is closed")
	ErrNotConnected   = errors.New("session is not connected")
	ErrFrameDropped   = errors.New("video frame dropped")
)

// Session is one live conversation with a remote model. It owns the
// capture pipeline, the playback scheduler and the transport, and keeps
// them consistent across pauses and reconnects.
type Session struct {
	ID string

	transportFactory   transport.Factory
	audioInput         audioInput
	audioOutput        audioOutput
	registry           *tools.Registry
	interruptionPolicy interruptions.Policy
	stopKeywords       []string
	transcriber        speechtotext.Transcriber
	schedulerConfig    playback.Config
	captureBlockSize   int
	reconnectDelay     time.Duration
	config             transport.SessionConfig
	memorySink         conversations.Sink
	memory             *conversations.Memory
	videoSource        video.FrameSource
	videoOptions       []video.PumpOption

	mixer      *playback.Mixer
	scheduler  *playback.Scheduler
	capture    *capture.Pipeline
	aggregator *transcript.Aggregator
	// Separate handlers because each one tracks keyword offsets in its own
	// running transcript.
	interruptions      *interruptions.Handler
	localInterruptions *interruptions.Handler

	emit atomic.Pointer[eventEmitter]

	// lifecycleMu serializes Start, reconnects and Stop.
	lifecycleMu sync.Mutex

	mu            sync.Mutex
	state         State
	muted         bool
	paused        bool
	videoEnabled  bool
	transport     transport.Transport
	dispatcher    *tools.Dispatcher
	generation    uint64
	systemContext string
	cancelWorkers context.CancelFunc

	closing   chan struct{}
	closeOnce sync.Once
}

func NewSession(opts ...SessionOption) *Session {
	registry, _ := tools.NewRegistry()
	s := &Session{
		ID:                 uuid.NewString(),
		registry:           registry,
		interruptionPolicy: interruptions.DefaultPolicy,
		schedulerConfig:    playback.DefaultConfig(),
		captureBlockSize:   audio.DefaultBlockSize,
		reconnectDelay:     DefaultReconnectDelay,
		memory:             conversations.NewMemory(),
		aggregator:         transcript.NewAggregator(),
		mixer:              playback.NewMixer(audio.PlaybackSampleRate),
		closing:            make(chan struct{}),
	}
	noop := eventEmitter(noopEventEmitter)
	s.emit.Store(&noop)

	for _, opt := range opts {
		opt(s)
	}

	s.scheduler = playback.NewScheduler(s.mixer,
		playback.WithConfig(s.schedulerConfig),
		playback.WithSpeakingChangedCallback(func(isSpeaking bool) {
			s.emitEvent(events.NewAssistantSpeakingChanged(isSpeaking))
		}),
	)
	s.capture = capture.NewPipeline(
		capture.WithSampleRate(audio.DefaultSampleRate),
		capture.WithBlockSize(s.captureBlockSize),
		capture.WithVolumeCallback(func(level float64) {
			s.emitEvent(events.NewUserVolume(level))
		}),
		capture.WithPCMTap(s.sendToTranscriber),
	)

	handlerOpts := []interruptions.HandlerOption{interruptions.WithPolicy(s.interruptionPolicy)}
	if len(s.stopKeywords) > 0 {
		handlerOpts = append(handlerOpts, interruptions.WithKeywords(s.stopKeywords...))
	}
	s.interruptions = interruptions.NewHandler(handlerOpts...)
	s.localInterruptions = interruptions.NewHandler(handlerOpts...)
	return s
}

func (s *Session) emitEvent(event events.Event) {
	(*s.emit.Load())(event)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Session) IsSpeaking() bool { return s.scheduler.Speaking() }

// Memory returns the rolling conversation memory injected on every connect.
func (s *Session) Memory() *conversations.Memory { return s.memory }

// PendingToolCalls lists tool calls that have not been answered yet.
func (s *Session) PendingToolCalls() []tools.PendingCall {
	s.mu.Lock()
	dispatcher := s.dispatcher
	s.mu.Unlock()
	if dispatcher == nil {
		return nil
	}
	return dispatcher.Pending()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	from := s.state
	s.state = state
	s.mu.Unlock()

	if from != state {
		logger.Debug("session state changed", slog.String("from", from.String()), slog.String("to", state.String()))
		s.emitEvent(events.NewSessionStateChanged(from.String(), state.String()))
	}
}

// Start connects the session. conversationMemory is prepended to the
// system context, e.g. a summary of earlier sessions.
//
// A *capture.PermissionError means the microphone could not be opened and a
// *transport.ConnectionError that the model could not be reached. In both
// cases the session is back in Idle and Start may be retried.
func (s *Session) Start(ctx context.Context, conversationMemory string, opts ...StartOption) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	switch s.State() {
	case StateIdle:
	case StateClosing, StateClosed:
		return ErrSessionClosed
	default:
		return ErrAlreadyStarted
	}

	startOptions := StartOptions{}
	for _, opt := range opts {
		opt(&startOptions)
	}
	emitter := newCallbackEventEmitter(startOptions)
	s.emit.Store(&emitter)

	s.registry.Seal()
	s.mu.Lock()
	s.systemContext = conversationMemory
	s.mu.Unlock()

	ctx, cancel := withCancelOnSignal(ctx, s.closing)
	defer cancel()

	s.setState(StateConnecting)
	if err := s.connect(ctx); err != nil {
		s.setState(StateIdle)
		return err
	}
	s.setState(StateOpen)
	s.startWorkers()
	return nil
}

// connect acquires the devices and opens a new transport. On failure
// everything acquired here is released again.
func (s *Session) connect(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "connect")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if s.transportFactory == nil {
		return &transport.ConnectionError{Op: "connect", Endpoint: "session", Err: errors.New("no transport configured")}
	}

	if err := s.audioInput.Acquire(ctx, s.capture.WritePCM16); err != nil {
		return err
	}
	if err := s.audioOutput.Start(ctx, s.mixer.Render); err != nil {
		return errors.Join(err, s.audioInput.Release())
	}

	config, err := s.sessionConfig()
	if err != nil {
		return errors.Join(err, s.releaseDevices())
	}
	span.SetAttributes(
		attribute.String("session.model", config.Model),
		attribute.Int("session.tools", len(config.Tools)),
	)

	t := s.transportFactory()
	dispatcher := tools.NewDispatcher(s.registry, t,
		tools.WithInvokedCallback(func(name, args string) {
			s.emitEvent(events.NewToolCallStarted(name, args))
		}),
		tools.WithCompletedCallback(func(name string, result any, err error) {
			if err != nil {
				s.emitEvent(events.NewToolCallFailed(name, err.Error()))
				return
			}
			s.emitEvent(events.NewToolCallCompleted(name, result))
		}),
	)

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.transport = t
	s.dispatcher = dispatcher
	s.mu.Unlock()

	if err := t.Connect(ctx, config, s.handlerFor(generation)); err != nil {
		s.mu.Lock()
		if s.generation == generation {
			s.generation++
			s.transport = nil
			s.dispatcher = nil
		}
		s.mu.Unlock()
		dispatcher.Close()

		var connectionErr *transport.ConnectionError
		if !errors.As(err, &connectionErr) {
			err = &transport.ConnectionError{Op: "connect", Endpoint: config.Model, Err: err}
		}
		return errors.Join(err, s.releaseDevices())
	}

	s.capture.Reset()
	s.capture.SetSender(t)
	return nil
}

// sessionConfig deep copies the base config so transports never share
// slices with the session.
func (s *Session) sessionConfig() (transport.SessionConfig, error) {
	var config transport.SessionConfig
	if err := copier.CopyWithOption(&config, &s.config, copier.Option{DeepCopy: true}); err != nil {
		return config, fmt.Errorf("failed to copy session config: %w", err)
	}

	s.mu.Lock()
	systemContext := s.systemContext
	s.mu.Unlock()

	history := ""
	if s.memory.Len() > 0 {
		history = "Conversation so far:\n" + s.memory.String()
	}
	config.SystemInstruction = joinNonEmpty("\n\n", s.config.SystemInstruction, systemContext, history)
	config.Tools = s.registry.Declarations()
	config.InputTranscription = true
	config.OutputTranscription = true
	if config.InputSampleRate == 0 {
		config.InputSampleRate = audio.DefaultSampleRate
	}
	if config.OutputSampleRate == 0 {
		config.OutputSampleRate = audio.PlaybackSampleRate
	}
	return config, nil
}

func (s *Session) releaseDevices() error {
	return errors.Join(s.audioInput.Release(), s.audioOutput.Release())
}

// disconnect detaches and closes the current transport, flushes the turn it
// cut off into memory, then releases the devices. Once it returns no
// capture, video or tool response reaches the old transport.
func (s *Session) disconnect(ctx context.Context) error {
	s.capture.SetSender(nil)

	s.mu.Lock()
	t, dispatcher := s.transport, s.dispatcher
	s.transport = nil
	s.dispatcher = nil
	s.generation++
	s.mu.Unlock()

	s.scheduler.HardStop()
	if dispatcher != nil {
		dispatcher.Close()
	}

	var errs []error
	if t != nil {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
		}
		waitCtx, cancel := context.WithTimeout(ctx, transportCloseTimeout)
		select {
		case <-t.Done():
		case <-waitCtx.Done():
			errs = append(errs, fmt.Errorf("transport did not close: %w", waitCtx.Err()))
		}
		cancel()
	}
	s.flushTranscripts()

	errs = append(errs, s.releaseDevices())
	return errors.Join(errs...)
}

func (s *Session) startWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancelWorkers = cancel
	s.mu.Unlock()

	if s.videoSource != nil {
		pump := video.NewPump(s.videoSource, s.SendVideoFrame, s.videoOptions...)
		go func() {
			if err := panicSafeNamedWorker("video pump", pump.Run)(ctx); err != nil {
				logger.Error("video pump stopped", slog.String("error", err.Error()))
			}
		}()
	}

	if s.transcriber != nil {
		err := s.transcriber.Transcribe(ctx,
			speechtotext.WithEncodingInfo(audio.GetDefaultEncodingInfo()),
			speechtotext.WithInterimTranscriptionCallback(s.handleLocalTranscript),
			speechtotext.WithTranscriptionCallback(func(string) { s.localInterruptions.Reset() }),
		)
		if err != nil {
			logger.Warn("local transcription unavailable", slog.String("error", err.Error()))
		}
	}
}

func (s *Session) sendToTranscriber(pcm []byte) {
	if s.transcriber == nil {
		return
	}
	if err := s.transcriber.SendAudio(pcm); err != nil {
		logger.Debug("failed to send audio to local transcriber", slog.String("error", err.Error()))
	}
}

// Pause keeps the connection up but stops sending capture and video and
// silences playback. It is remembered across reconnects.
func (s *Session) Pause(paused bool) error {
	s.mu.Lock()
	state := s.state
	if state == StateIdle || state == StateClosing || state == StateClosed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.paused = paused
	s.mu.Unlock()

	s.capture.SetPaused(paused)
	s.mixer.SetPaused(paused)
	if state.IsActive() {
		s.setState(activeState(paused))
	}
	return nil
}

func activeState(paused bool) State {
	if paused {
		return StatePaused
	}
	return StateOpen
}

// Mute gates capture sends only; playback and volume reports continue.
func (s *Session) Mute(muted bool) {
	s.mu.Lock()
	changed := s.muted != muted
	s.muted = muted
	s.mu.Unlock()

	s.capture.SetMuted(muted)
	if changed {
		s.emitEvent(events.NewUserMuteChanged(muted))
	}
}

func (s *Session) SetVideoEnabled(enabled bool) {
	s.mu.Lock()
	s.videoEnabled = enabled
	s.mu.Unlock()
}

// SendVideoFrame forwards a JPEG frame when the session is open, not paused
// and video is enabled. Otherwise the frame is dropped with ErrFrameDropped.
func (s *Session) SendVideoFrame(jpeg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen || !s.videoEnabled || s.transport == nil {
		return ErrFrameDropped
	}
	return s.transport.SendVideoFrame(jpeg)
}

// UpdateContext reconnects with text appended to the system context.
func (s *Session) UpdateContext(ctx context.Context, text string) error {
	return s.reconnect(ctx, "context update", func() {
		s.mu.Lock()
		s.systemContext = joinNonEmpty("\n", s.systemContext, text)
		s.mu.Unlock()
	})
}

// RotateKey reconnects using a new API key.
func (s *Session) RotateKey(ctx context.Context, apiKey string) error {
	return s.reconnect(ctx, "key rotation", func() {
		s.config.APIKey = apiKey
	})
}

// reconnect tears the transport down completely before a new one is
// created. A failed reconnect leaves the session Idle.
func (s *Session) reconnect(ctx context.Context, reason string, apply func()) (err error) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.State().IsActive() {
		return ErrNotConnected
	}

	ctx, cancel := withCancelOnSignal(ctx, s.closing)
	defer cancel()
	ctx, span := tracer.Start(ctx, "reconnect", trace.WithAttributes(attribute.String("reconnect.reason", reason)))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	reconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("reconnect.reason", reason)))

	s.setState(StateConnecting)
	if err := s.disconnect(ctx); err != nil {
		s.setState(StateIdle)
		return fmt.Errorf("failed to tear down connection: %w", err)
	}

	select {
	case <-time.After(s.reconnectDelay):
	case <-ctx.Done():
		s.setState(StateIdle)
		return ctx.Err()
	}

	apply()
	if err := s.connect(ctx); err != nil {
		s.setState(StateIdle)
		return err
	}

	s.mu.Lock()
	paused, muted := s.paused, s.muted
	s.mu.Unlock()
	s.capture.SetMuted(muted)
	s.capture.SetPaused(paused)
	s.mixer.SetPaused(paused)
	s.setState(activeState(paused))
	s.emitEvent(events.NewSessionReconnected(reason))
	return nil
}

// Stop closes the session from any state. Only the first call has an
// effect.
func (s *Session) Stop() {
	s.stop("stopped")
}

func (s *Session) stop(reason string) {
	s.closeOnce.Do(func() {
		close(s.closing)

		s.lifecycleMu.Lock()
		defer s.lifecycleMu.Unlock()

		s.setState(StateClosing)

		s.mu.Lock()
		cancelWorkers := s.cancelWorkers
		s.mu.Unlock()
		if cancelWorkers != nil {
			cancelWorkers()
		}

		var errs []error
		if s.transcriber != nil {
			if err := s.transcriber.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close local transcriber: %w", err))
			}
		}
		if err := s.disconnect(context.Background()); err != nil {
			errs = append(errs, err)
		}
		s.scheduler.Close()
		if err := errors.Join(errs...); err != nil {
			logger.Warn("session closed with errors", slog.String("error", err.Error()))
		}

		s.setState(StateClosed)
		logger.Info("session closed", slog.String("session_id", s.ID), slog.String("reason", reason))
		s.emitEvent(events.NewSessionClosed(reason))
	})
}
