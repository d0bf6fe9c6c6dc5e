package events

import (
	"sync/atomic"
	"time"
)

type Kind string

// Event is anything a session reports to its owner.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
	// Sequence orders events created on different goroutines, e.g. playback
	// callbacks and inbound transport events.
	Sequence() uint64
}

var sequence atomic.Uint64

type Base struct {
	kind      Kind
	timestamp time.Time
	sequence  uint64
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now(), sequence: sequence.Add(1)}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }
func (b Base) Sequence() uint64     { return b.sequence }
