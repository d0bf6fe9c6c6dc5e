package speechtotext

import (
	"context"

	"github.com/koscakluka/ema-live/core/audio"
)

// Transcriber streams captured PCM to a speech-to-text service.
type Transcriber interface {
	Transcribe(ctx context.Context, opts ...TranscriptionOption) error
	SendAudio(pcm []byte) error
	Close() error
}

type TranscriptionOptions struct {
	// InterimTranscriptionCallback receives the running transcript of the
	// current utterance, including words that may still change.
	InterimTranscriptionCallback func(transcript string)
	// PartialTranscriptionCallback receives each finalized segment.
	PartialTranscriptionCallback func(transcript string)
	// TranscriptionCallback receives the full utterance once speech ended.
	TranscriptionCallback func(transcript string)

	SpeechStartedCallback func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithPartialTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
