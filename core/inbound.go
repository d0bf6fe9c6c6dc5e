package orchestration

import (
	"context"
	"log/slog"
	"time"

	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/interruptions"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/tools"
	"github.com/koscakluka/ema-live/core/transcript"
	"github.com/koscakluka/ema-live/core/transport"
)

// handlerFor drops events from transports that were replaced or closed by
// the session itself.
func (s *Session) handlerFor(generation uint64) transport.Handler {
	return func(event transport.ServerEvent) {
		s.mu.Lock()
		current := s.generation == generation
		dispatcher := s.dispatcher
		s.mu.Unlock()
		if !current {
			return
		}
		s.handleServerEvent(context.Background(), event, dispatcher)
	}
}

func (s *Session) handleServerEvent(ctx context.Context, event transport.ServerEvent, dispatcher *tools.Dispatcher) {
	switch e := event.(type) {
	case transport.AudioChunk:
		s.scheduler.Enqueue(e.Frame)

	case transport.Interrupted:
		s.emitEvent(events.NewTurnInterrupted())
		action := s.interruptions.HandleInterrupted(ctx, player{s.mixer, s.scheduler})
		s.emitEvent(events.NewAssistantPlaybackInterrupted(action.String(), "model"))

	case transport.InputTranscript:
		s.aggregator.Append(transcript.RoleUser, e.Text)
		s.emitEvent(events.NewUserTranscriptSegment(e.Text))
		pending := s.aggregator.Pending(transcript.RoleUser)
		if action := s.interruptions.HandleUserTranscript(ctx, pending, player{s.mixer, s.scheduler}); action != interruptions.ActionNone {
			s.emitEvent(events.NewUserStopKeyword(pending))
			s.emitEvent(events.NewAssistantPlaybackInterrupted(action.String(), "keyword"))
		}

	case transport.OutputTranscript:
		s.aggregator.Append(transcript.RoleModel, e.Text)
		s.emitEvent(events.NewAssistantResponseSegment(e.Text))

	case transport.TurnComplete:
		s.completeTurn()

	case transport.ToolCallRequest:
		if dispatcher != nil {
			dispatcher.Dispatch(ctx, e)
		}

	case transport.Error:
		if transport.IsFatal(e.Err) {
			logger.Error("fatal session error", slog.String("error", e.Err.Error()))
			go s.stop(e.Err.Error())
			return
		}
		logger.Warn("transient session error", slog.String("error", e.Err.Error()))

	case transport.Closed:
		reason := e.Reason
		if reason == "" && e.Err != nil {
			reason = e.Err.Error()
		}
		if reason == "" {
			reason = "connection closed"
		}
		// Stop waits for this reader to finish, so it cannot run inline.
		go s.stop(reason)
	}
}

func (s *Session) completeTurn() {
	s.flushTranscripts()
	s.emitEvent(events.NewTurnCompleted())
}

// flushTranscripts records whatever the aggregator holds as finished
// utterances and clears keyword state for the next turn.
func (s *Session) flushTranscripts() {
	utterances := s.aggregator.Flush()
	s.interruptions.Reset()
	s.localInterruptions.Reset()

	for _, utterance := range utterances {
		if err := s.memory.Record(utterance); err != nil {
			logger.Warn("failed to record utterance", slog.String("error", err.Error()))
		}
		if s.memorySink != nil {
			if err := s.memorySink.Record(utterance); err != nil {
				logger.Warn("failed to publish utterance", slog.String("role", string(utterance.Role)), slog.String("error", err.Error()))
			}
		}

		switch utterance.Role {
		case transcript.RoleUser:
			s.emitEvent(events.NewUserTranscriptFinal(utterance.Text))
		case transcript.RoleModel:
			s.emitEvent(events.NewAssistantResponseFinal(utterance.Text))
		}
	}
}

func (s *Session) handleLocalTranscript(text string) {
	if !s.State().IsActive() {
		return
	}
	if action := s.localInterruptions.HandleUserTranscript(context.Background(), text, player{s.mixer, s.scheduler}); action != interruptions.ActionNone {
		s.emitEvent(events.NewUserStopKeyword(text))
		s.emitEvent(events.NewAssistantPlaybackInterrupted(action.String(), "keyword"))
	}
}

// player adapts the mixer and scheduler to the interruption handler.
type player struct {
	mixer     *playback.Mixer
	scheduler *playback.Scheduler
}

func (p player) Duck(level float32, d time.Duration) { p.mixer.Duck(level, d) }
func (p player) HardStop()                          { p.scheduler.HardStop() }
