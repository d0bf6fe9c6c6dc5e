package transport

import (
	"context"
	"log/slog"
	"sync"
)

const DefaultOutboxSize = 64

// Outbox runs writes on a single goroutine so callers never wait on the
// network. Writes are dropped when the queue is full.
type Outbox struct {
	name    string
	queue   chan func() error
	onError func(error)

	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
}

func NewOutbox(name string, size int, onError func(error)) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	o := &Outbox{
		name:    name,
		queue:   make(chan func() error, size),
		onError: onError,
		stopped: make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Outbox) run() {
	defer close(o.stopped)
	for write := range o.queue {
		if err := write(); err != nil && o.onError != nil {
			o.onError(err)
		}
	}
}

// Push queues write. It returns ErrClosed after Close and ErrQueueFull when
// the write had to be dropped.
func (o *Outbox) Push(write func() error) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrClosed
	}

	select {
	case o.queue <- write:
		return nil
	default:
		framesDropped.Add(context.Background(), 1)
		logger.Warn("outbound queue full, dropping frame", slog.String("transport", o.name))
		return ErrQueueFull
	}
}

// Close stops accepting writes and waits until the queued ones ran.
func (o *Outbox) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	<-o.stopped
}
