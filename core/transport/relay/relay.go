package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	writeTimeout            = 5 * time.Second
	closeGracePeriod        = 2 * time.Second

	videoMimeType = "image/jpeg"
)

// Client is a transport.Transport talking JSON frames to a relay that
// fronts the live model.
type Client struct {
	url              string
	header           http.Header
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	queueSize        int

	mu      sync.Mutex
	conn    *websocket.Conn
	outbox  *transport.Outbox
	handler transport.Handler

	closing   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
}

type Option func(*Client)

func WithHeader(header http.Header) Option {
	return func(c *Client) { c.header = header.Clone() }
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = dialer }
}

func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.handshakeTimeout = timeout }
}

func WithQueueSize(size int) Option {
	return func(c *Client) { c.queueSize = size }
}

func New(url string, opts ...Option) *Client {
	c := &Client{
		url:              url,
		header:           http.Header{},
		dialer:           websocket.DefaultDialer,
		handshakeTimeout: defaultHandshakeTimeout,
		queueSize:        transport.DefaultOutboxSize,
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFactory returns a transport.Factory creating relay clients for url.
func NewFactory(url string, opts ...Option) transport.Factory {
	return func() transport.Transport { return New(url, opts...) }
}

type outboundFrame struct {
	Type         string                  `json:"type"`
	Setup        *setupPayload           `json:"setup,omitempty"`
	Audio        *audio.WireAudioFrame   `json:"audio,omitempty"`
	Video        *mediaPayload           `json:"video,omitempty"`
	ToolResponse *transport.ToolResponse `json:"toolResponse,omitempty"`
}

type setupPayload struct {
	APIKey              string                      `json:"apiKey,omitempty"`
	Model               string                      `json:"model"`
	Voice               string                      `json:"voice,omitempty"`
	ResponseModalities  []transport.Modality        `json:"responseModalities,omitempty"`
	SystemInstruction   string                      `json:"systemInstruction,omitempty"`
	Tools               []transport.ToolDeclaration `json:"tools,omitempty"`
	InputTranscription  bool                        `json:"inputTranscription"`
	OutputTranscription bool                        `json:"outputTranscription"`
	InputSampleRate     int                         `json:"inputSampleRate,omitempty"`
	OutputSampleRate    int                         `json:"outputSampleRate,omitempty"`
}

type mediaPayload struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (c *Client) Connect(ctx context.Context, config transport.SessionConfig, handler transport.Handler) (err error) {
	ctx, span := tracer.Start(ctx, "connect relay", trace.WithAttributes(
		attribute.String("transport.endpoint", c.url),
		attribute.String("session.model", config.Model),
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
		return &transport.ConnectionError{Op: "connect", Endpoint: c.url, Err: transport.ErrClosed}
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.handshakeTimeout)
		defer cancel()
	}

	conn, resp, err := c.dialer.DialContext(dialCtx, c.url, c.header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return &transport.ConnectionError{Op: "dial", Endpoint: c.url, Err: transport.ClassifyError(err)}
	}

	if err := c.handshake(conn, config); err != nil {
		conn.Close()
		return &transport.ConnectionError{Op: "set up session with", Endpoint: c.url, Err: err}
	}

	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		conn.Close()
		return &transport.ConnectionError{Op: "connect", Endpoint: c.url, Err: transport.ErrClosed}
	}
	c.conn = conn
	c.handler = handler
	c.outbox = transport.NewOutbox("relay", c.queueSize, func(err error) {
		logger.Warn("failed to write relay frame", slog.String("error", err.Error()))
	})
	c.mu.Unlock()

	go c.readLoop(conn, handler)
	return nil
}

func (c *Client) handshake(conn *websocket.Conn, config transport.SessionConfig) error {
	setup := outboundFrame{Type: "setup", Setup: &setupPayload{
		APIKey:              config.APIKey,
		Model:               config.Model,
		Voice:               config.Voice,
		ResponseModalities:  config.ResponseModalities,
		SystemInstruction:   config.SystemInstruction,
		Tools:               config.Tools,
		InputTranscription:  config.InputTranscription,
		OutputTranscription: config.OutputTranscription,
		InputSampleRate:     config.InputSampleRate,
		OutputSampleRate:    config.OutputSampleRate,
	}}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(setup); err != nil {
		return transport.ClassifyError(fmt.Errorf("failed to send setup: %w", err))
	}

	conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return transport.ClassifyError(fmt.Errorf("failed to read setup acknowledgement: %w", err))
		}

		var msg transport.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("%w: failed to decode setup acknowledgement: %w", transport.ErrProtocol, err)
		}
		if msg.Error != "" {
			return transport.ClassifyError(fmt.Errorf("relay rejected setup: %s", msg.Error))
		}
		if msg.SetupComplete {
			return nil
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, handler transport.Handler) {
	defer c.markDone()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			handler(c.closedEvent(err))
			return
		}

		var msg transport.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			handler(transport.Error{Err: fmt.Errorf("%w: failed to decode relay frame: %w", transport.ErrProtocol, err)})
			continue
		}
		for _, event := range transport.Classify(msg) {
			handler(event)
		}
	}
}

func (c *Client) closedEvent(readErr error) transport.Closed {
	if c.closing.Load() {
		return transport.Closed{Reason: "closed"}
	}
	if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		reason := "remote closed"
		if closeErr, ok := readErr.(*websocket.CloseError); ok && closeErr.Text != "" {
			reason = closeErr.Text
		}
		return transport.Closed{Reason: reason}
	}
	err := transport.ClassifyError(readErr)
	return transport.Closed{Reason: err.Error(), Err: err}
}

func (c *Client) SendAudio(frame audio.WireAudioFrame) error {
	return c.push(outboundFrame{Type: "audio", Audio: &frame})
}

func (c *Client) SendVideoFrame(jpeg []byte) error {
	return c.push(outboundFrame{Type: "video", Video: &mediaPayload{
		Data:     base64.StdEncoding.EncodeToString(jpeg),
		MimeType: videoMimeType,
	}})
}

func (c *Client) SendToolResponse(response transport.ToolResponse) error {
	return c.push(outboundFrame{Type: "tool_response", ToolResponse: &response})
}

func (c *Client) push(frame outboundFrame) error {
	c.mu.Lock()
	conn, outbox := c.conn, c.outbox
	c.mu.Unlock()
	if outbox == nil || c.closing.Load() {
		return transport.ErrClosed
	}

	return outbox.Push(func() error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(frame)
	})
}

// Close drains queued frames, sends a close frame and closes the
// connection. It does not wait for the reader; use Done for that.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		c.mu.Lock()
		conn, outbox := c.conn, c.outbox
		c.mu.Unlock()

		if conn == nil {
			c.markDone()
			return
		}

		outbox.Close()
		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if writeErr := conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(closeGracePeriod)); writeErr != nil &&
			writeErr != websocket.ErrCloseSent {
			logger.Debug("failed to send close frame", slog.String("error", writeErr.Error()))
		}
		if closeErr := conn.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close relay connection: %w", closeErr)
		}
	})
	return err
}

func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}
