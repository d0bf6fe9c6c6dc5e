package orchestration

import (
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transcript"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts StartOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.AssistantSpeakingChanged:
			if opts.onSpeakingChanged != nil {
				opts.onSpeakingChanged(typedEvent.Speaking)
			}
		case events.UserVolume:
			if opts.onUserVolume != nil {
				opts.onUserVolume(typedEvent.Level)
			}
		case events.ToolCallStarted:
			if opts.onToolInvoked != nil {
				opts.onToolInvoked(typedEvent.Name, typedEvent.Args)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscript != nil {
				opts.onTranscript(string(transcript.RoleUser), typedEvent.Transcript)
			}
		case events.AssistantResponseFinal:
			if opts.onTranscript != nil {
				opts.onTranscript(string(transcript.RoleModel), typedEvent.Transcript)
			}
		case events.SessionClosed:
			if opts.onClosed != nil {
				opts.onClosed(typedEvent.Reason)
			}
		}
	}
}
