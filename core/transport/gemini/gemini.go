package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const (
	DefaultModel      = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice      = "Zephyr"
	DefaultAPIVersion = "v1beta"

	defaultSetupTimeout = 15 * time.Second
	videoMimeType       = "image/jpeg"
)

// Client is a transport.Transport over the Gemini Live API.
type Client struct {
	httpClient   *http.Client
	apiVersion   string
	setupTimeout time.Duration
	queueSize    int

	mu      sync.Mutex
	session *genai.Session
	outbox  *transport.Outbox

	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

func WithAPIVersion(version string) Option {
	return func(c *Client) { c.apiVersion = version }
}

func WithSetupTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.setupTimeout = timeout }
}

func WithQueueSize(size int) Option {
	return func(c *Client) { c.queueSize = size }
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		apiVersion:   DefaultAPIVersion,
		setupTimeout: defaultSetupTimeout,
		queueSize:    transport.DefaultOutboxSize,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func NewFactory(opts ...Option) transport.Factory {
	return func() transport.Transport { return New(opts...) }
}

func (c *Client) Connect(ctx context.Context, config transport.SessionConfig, handler transport.Handler) (err error) {
	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	ctx, span := tracer.Start(ctx, "connect gemini live", trace.WithAttributes(
		attribute.String("session.model", model),
		attribute.Int("session.tools", len(config.Tools)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "connect failed")
			c.markDone()
		}
		span.End()
	}()

	if c.closing.Load() {
		return &transport.ConnectionError{Op: "connect", Endpoint: model, Err: transport.ErrClosed}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      config.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  c.httpClient,
		HTTPOptions: genai.HTTPOptions{APIVersion: c.apiVersion},
	})
	if err != nil {
		return &transport.ConnectionError{Op: "create client for", Endpoint: model, Err: transport.ClassifyError(err)}
	}

	liveConfig, err := liveConnectConfig(config)
	if err != nil {
		return &transport.ConnectionError{Op: "configure", Endpoint: model, Err: err}
	}

	session, err := client.Live.Connect(ctx, model, liveConfig)
	if err != nil {
		return &transport.ConnectionError{Op: "dial", Endpoint: model, Err: transport.ClassifyError(err)}
	}

	ready := make(chan struct{})
	setupErr := make(chan error, 1)
	go c.readLoop(session, handler, ready, setupErr)

	timer := time.NewTimer(c.setupTimeout)
	defer timer.Stop()
	select {
	case <-ready:
	case err := <-setupErr:
		session.Close()
		return &transport.ConnectionError{Op: "set up session with", Endpoint: model, Err: transport.ClassifyError(err)}
	case <-timer.C:
		session.Close()
		return &transport.ConnectionError{Op: "set up session with", Endpoint: model,
			Err: fmt.Errorf("%w: no setup acknowledgement within %s", transport.ErrTransientNetwork, c.setupTimeout)}
	case <-ctx.Done():
		session.Close()
		return &transport.ConnectionError{Op: "set up session with", Endpoint: model, Err: transport.ClassifyError(ctx.Err())}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing.Load() {
		session.Close()
		return &transport.ConnectionError{Op: "connect", Endpoint: model, Err: transport.ErrClosed}
	}
	c.session = session
	c.outbox = transport.NewOutbox("gemini", c.queueSize, func(err error) {
		logger.Warn("failed to send to gemini live", slog.String("error", err.Error()))
	})
	return nil
}

// readLoop delivers events only after setup completed. Errors before that
// are reported on setupErr and never reach the handler.
func (c *Client) readLoop(session *genai.Session, handler transport.Handler, ready chan struct{}, setupErr chan<- error) {
	defer c.markDone()

	isReady := false
	for {
		msg, err := session.Receive()
		if err != nil {
			if !isReady {
				setupErr <- err
				return
			}
			handler(c.closedEvent(err))
			return
		}

		if !isReady {
			if msg.SetupComplete == nil {
				continue
			}
			isReady = true
			close(ready)
		}

		if msg.GoAway != nil {
			logger.Warn("gemini live session is going away", slog.Duration("time_left", msg.GoAway.TimeLeft))
			handler(transport.Error{Err: fmt.Errorf("%w: server closes the session in %s", transport.ErrTransientNetwork, msg.GoAway.TimeLeft)})
		}

		for _, event := range transport.Classify(inboundMessage(msg)) {
			handler(event)
		}
	}
}

func (c *Client) closedEvent(readErr error) transport.Closed {
	if c.closing.Load() {
		return transport.Closed{Reason: "closed"}
	}
	if closeErr, ok := readErr.(*websocket.CloseError); ok &&
		(closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
		reason := closeErr.Text
		if reason == "" {
			reason = "remote closed"
		}
		return transport.Closed{Reason: reason}
	}
	err := transport.ClassifyError(readErr)
	return transport.Closed{Reason: err.Error(), Err: err}
}

func (c *Client) SendAudio(frame audio.WireAudioFrame) error {
	pcm, err := audio.DecodeBytes(frame)
	if err != nil {
		return fmt.Errorf("failed to decode outbound audio: %w", err)
	}
	return c.push(func(session *genai.Session) error {
		return session.SendRealtimeInput(genai.LiveRealtimeInput{
			Audio: &genai.Blob{Data: pcm, MIMEType: frame.MimeType},
		})
	})
}

func (c *Client) SendVideoFrame(jpeg []byte) error {
	return c.push(func(session *genai.Session) error {
		return session.SendRealtimeInput(genai.LiveRealtimeInput{
			Video: &genai.Blob{Data: jpeg, MIMEType: videoMimeType},
		})
	})
}

func (c *Client) SendToolResponse(response transport.ToolResponse) error {
	return c.push(func(session *genai.Session) error {
		return session.SendToolResponse(genai.LiveToolResponseInput{
			FunctionResponses: []*genai.FunctionResponse{{
				ID:       response.ID,
				Name:     response.Name,
				Response: response.Response,
			}},
		})
	})
}

func (c *Client) push(send func(*genai.Session) error) error {
	c.mu.Lock()
	session, outbox := c.session, c.outbox
	c.mu.Unlock()
	if outbox == nil || c.closing.Load() {
		return transport.ErrClosed
	}
	return outbox.Push(func() error { return send(session) })
}

// Close drains queued sends and closes the session. Use Done to wait for
// the reader to exit.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		c.mu.Lock()
		session, outbox := c.session, c.outbox
		c.mu.Unlock()
		if session == nil {
			c.markDone()
			return
		}

		outbox.Close()
		if closeErr := session.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close gemini live session: %w", closeErr)
		}
	})
	return err
}

func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}
