package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Responder delivers tool results back to the model.
type Responder interface {
	SendToolResponse(response transport.ToolResponse) error
}

type PendingCall struct {
	ID        string
	Name      string
	StartedAt time.Time
}

// Dispatcher runs tool calls concurrently and answers each call id exactly
// once, with either {"output": ...} or {"error": ...}.
type Dispatcher struct {
	registry  *Registry
	responder Responder
	onInvoked func(name, args string)
	onDone    func(name string, result any, err error)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]PendingCall
	closed  bool

	wg sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

// WithInvokedCallback is called before a validated call starts running.
func WithInvokedCallback(callback func(name, args string)) DispatcherOption {
	return func(d *Dispatcher) { d.onInvoked = callback }
}

// WithCompletedCallback is called once a call has been answered. It is not
// called for results dropped after Close.
func WithCompletedCallback(callback func(name string, result any, err error)) DispatcherOption {
	return func(d *Dispatcher) { d.onDone = callback }
}

func NewDispatcher(registry *Registry, responder Responder, opts ...DispatcherOption) *Dispatcher {
	if registry == nil {
		registry, _ = NewRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		registry:  registry,
		responder: responder,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]PendingCall),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch never blocks on the tool itself. ctx only parents the span; the
// handler context is cancelled by Close.
func (d *Dispatcher) Dispatch(ctx context.Context, request transport.ToolCallRequest) {
	toolCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("tool.name", request.Name)))

	tool, ok := d.registry.Get(request.Name)
	if !ok {
		err := fmt.Errorf("%w: unknown tool %q", transport.ErrProtocol, request.Name)
		logger.Warn("model called an unknown tool", slog.String("tool", request.Name), slog.String("call_id", request.ID))
		d.respond("", request, nil, err)
		return
	}
	if err := tool.Validate(request.Args); err != nil {
		logger.Warn("model called a tool with invalid arguments", slog.String("tool", request.Name), slog.String("error", err.Error()))
		d.respond("", request, nil, err)
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	key := request.ID
	if _, taken := d.pending[key]; key == "" || taken {
		key = uuid.NewString()
	}
	d.pending[key] = PendingCall{ID: request.ID, Name: request.Name, StartedAt: time.Now()}
	d.wg.Add(1)
	d.mu.Unlock()

	if d.onInvoked != nil {
		d.onInvoked(request.Name, string(request.Args))
	}

	spanCtx := trace.ContextWithSpan(d.ctx, trace.SpanFromContext(ctx))
	go d.execute(spanCtx, key, tool, request)
}

func (d *Dispatcher) execute(ctx context.Context, key string, tool Tool, request transport.ToolCallRequest) {
	defer d.wg.Done()

	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", tool.Name),
		attribute.String("tool.call_id", request.ID),
	)

	result, err := invoke(ctx, tool, request.Args)
	if err != nil {
		err = fmt.Errorf("failed to execute tool %q: %w", tool.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	d.respond(key, request, result, err)
}

func invoke(ctx context.Context, tool Tool, args json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.handler(ctx, args)
}

func (d *Dispatcher) respond(key string, request transport.ToolCallRequest, result any, err error) {
	response := transport.ToolResponse{ID: request.ID, Name: request.Name}
	if err != nil {
		toolErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("tool.name", request.Name)))
		response.Response = map[string]any{"error": err.Error()}
	} else {
		response.Response = map[string]any{"output": result}
	}

	// The lock is held across the send so no response leaves after Close.
	d.mu.Lock()
	if key != "" {
		delete(d.pending, key)
	}
	if d.closed || d.responder == nil {
		d.mu.Unlock()
		return
	}
	if sendErr := d.responder.SendToolResponse(response); sendErr != nil {
		logger.Warn("failed to send tool response",
			slog.String("tool", request.Name),
			slog.String("call_id", request.ID),
			slog.String("error", sendErr.Error()))
	}
	d.mu.Unlock()

	if d.onDone != nil {
		d.onDone(request.Name, result, err)
	}
}

// Pending lists running calls, oldest first.
func (d *Dispatcher) Pending() []PendingCall {
	d.mu.Lock()
	defer d.mu.Unlock()

	pending := make([]PendingCall, 0, len(d.pending))
	for _, call := range d.pending {
		pending = append(pending, call)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].StartedAt.Before(pending[j].StartedAt) })
	return pending
}

// Wait blocks until every dispatched call has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return errors.Join(ctx.Err(), fmt.Errorf("%d tool calls still pending", len(d.Pending())))
	}
}

// Close cancels running handlers and drops their results. It does not wait
// for them to return.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
}
