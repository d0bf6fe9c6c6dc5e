package conversations

import (
	"errors"
	"strings"
	"sync"

	"github.com/koscakluka/ema-live/core/transcript"
)

const DefaultMaxUtterances = 50

// Sink receives every utterance recorded by a session.
type Sink interface {
	Record(utterance transcript.Utterance) error
}

// Memory is a rolling log of the most recent utterances of a conversation.
// It is rendered into the system instruction on every (re)connect.
type Memory struct {
	mu            sync.Mutex
	maxUtterances int
	utterances    []transcript.Utterance
}

type MemoryOption func(*Memory)

func WithMaxUtterances(max int) MemoryOption {
	return func(m *Memory) {
		if max > 0 {
			m.maxUtterances = max
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{maxUtterances: DefaultMaxUtterances}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Record(utterance transcript.Utterance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.utterances = append(m.utterances, utterance)
	if overflow := len(m.utterances) - m.maxUtterances; overflow > 0 {
		m.utterances = append(m.utterances[:0], m.utterances[overflow:]...)
	}
	return nil
}

// History returns past utterances, oldest first.
func (m *Memory) History() []transcript.Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transcript.Utterance(nil), m.utterances...)
}

func (m *Memory) Values(yield func(transcript.Utterance) bool) {
	for _, utterance := range m.History() {
		if !yield(utterance) {
			return
		}
	}
}

func (m *Memory) RValues(yield func(transcript.Utterance) bool) {
	history := m.History()
	for i := len(history) - 1; i >= 0; i-- {
		if !yield(history[i]) {
			return
		}
	}
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.utterances)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	m.utterances = nil
	m.mu.Unlock()
}

func (m *Memory) String() string {
	var b strings.Builder
	for utterance := range m.Values {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		switch utterance.Role {
		case transcript.RoleUser:
			b.WriteString("User: ")
		default:
			b.WriteString("Model: ")
		}
		b.WriteString(utterance.Text)
	}
	return b.String()
}

// MultiSink fans an utterance out to every sink and joins their errors.
type MultiSink []Sink

func (s MultiSink) Record(utterance transcript.Utterance) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Record(utterance); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
