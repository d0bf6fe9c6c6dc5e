package interruptions

import (
	"context"
	"log/slog"
	"time"

	"github.com/koscakluka/ema-live/core/transcript"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultDuckLevel    float32 = 0.3
	DefaultDuckDuration         = 1500 * time.Millisecond
)

// Player is the part of playback an interruption acts on.
type Player interface {
	Duck(level float32, d time.Duration)
	HardStop()
}

// Handler applies the interruption policy to a player. Model interruption
// signals and user transcript updates arrive on the transport reader, so
// calls are expected to be serial.
type Handler struct {
	policy       Policy
	detector     *transcript.KeywordDetector
	duckLevel    float32
	duckDuration time.Duration
}

type HandlerOption func(*Handler)

func WithPolicy(policy Policy) HandlerOption {
	return func(h *Handler) { h.policy = policy }
}

// WithKeywords replaces the default stop keywords.
func WithKeywords(keywords ...string) HandlerOption {
	return func(h *Handler) { h.detector = transcript.NewKeywordDetector(keywords...) }
}

func WithDuck(level float32, d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.duckLevel = level
		h.duckDuration = d
	}
}

func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		policy:       DefaultPolicy,
		duckLevel:    DefaultDuckLevel,
		duckDuration: DefaultDuckDuration,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.detector == nil {
		h.detector = transcript.NewKeywordDetector()
	}
	return h
}

func (h *Handler) Policy() Policy { return h.policy }

// HandleInterrupted reacts to the model reporting that the user started
// talking over it.
func (h *Handler) HandleInterrupted(ctx context.Context, player Player) Action {
	action := ActionDuck
	if h.policy == PolicyHardStop {
		action = ActionHardStop
	}
	return h.apply(ctx, action, player, "model")
}

// HandleUserTranscript checks the unflushed user transcript for a stop
// keyword that was not acted upon yet. Keywords are ignored under the
// hard-stop policy.
func (h *Handler) HandleUserTranscript(ctx context.Context, pending string, player Player) Action {
	if h.policy != PolicyKeywordGated || !h.detector.Detect(pending) {
		return ActionNone
	}
	logger.Info("stop keyword detected", slog.String("transcript", pending))
	return h.apply(ctx, ActionHardStop, player, "keyword")
}

// Reset forgets acted-upon keywords. It is called when the user buffer is
// flushed.
func (h *Handler) Reset() {
	h.detector.Reset()
}

func (h *Handler) apply(ctx context.Context, action Action, player Player, source string) Action {
	interruptionsHandled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("interruption.action", action.String()),
		attribute.String("interruption.source", source),
	))
	if player == nil {
		return action
	}

	switch action {
	case ActionDuck:
		player.Duck(h.duckLevel, h.duckDuration)
	case ActionHardStop:
		player.HardStop()
	}
	return action
}
