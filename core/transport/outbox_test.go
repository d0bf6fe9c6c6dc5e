package transport

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestOutboxRunsWritesInOrder(t *testing.T) {
	outbox := NewOutbox("test", 8, nil)
	var order []int
	for i := range 5 {
		if err := outbox.Push(func() error { order = append(order, i); return nil }); err != nil {
			t.Fatalf("expected push to succeed, got %v", err)
		}
	}
	outbox.Close()

	for i, v := range order {
		if v != i {
			t.Fatalf("expected writes in push order, got %v", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("expected close to drain all 5 writes, got %d", len(order))
	}
}

func TestOutboxDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	outbox := NewOutbox("test", 1, nil)

	outbox.Push(func() error { close(started); <-release; return nil })
	<-started
	if err := outbox.Push(func() error { return nil }); err != nil {
		t.Fatalf("expected queued write to be accepted, got %v", err)
	}
	if err := outbox.Push(func() error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	outbox.Close()
}

func TestOutboxRejectsAfterCloseAndReportsErrors(t *testing.T) {
	var failures atomic.Int32
	outbox := NewOutbox("test", 4, func(error) { failures.Add(1) })

	outbox.Push(func() error { return errors.New("broken pipe") })
	outbox.Close()
	outbox.Close()

	if failures.Load() != 1 {
		t.Fatalf("expected 1 reported write error, got %d", failures.Load())
	}
	if err := outbox.Push(func() error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}
