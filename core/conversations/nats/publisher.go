package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/koscakluka/ema-live/core/transcript"
	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "ema.live"

type Config struct {
	Servers        []string
	SubjectPrefix  string
	Token          string
	ConnectTimeout time.Duration
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Publisher records utterances by publishing them on
// <prefix>.transcript.<role>.
type Publisher struct {
	conn      publisher
	close     func()
	prefix    string
	sessionID string
}

type Message struct {
	SessionID string          `json:"session_id,omitempty"`
	Role      transcript.Role `json:"role"`
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
}

func Connect(_ context.Context, cfg Config, sessionID string) (*Publisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{nats.Name("ema-live")}
	if cfg.ConnectTimeout > 0 {
		options = append(options, nats.Timeout(cfg.ConnectTimeout))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	logger.Info("connected to NATS", slog.String("servers", url))

	p := newPublisher(conn, cfg.SubjectPrefix, sessionID)
	p.close = func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	}
	return p, nil
}

func newPublisher(conn publisher, prefix, sessionID string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: strings.TrimSuffix(prefix, "."), sessionID: sessionID}
}

func (p *Publisher) Subject(role transcript.Role) string {
	return p.prefix + ".transcript." + string(role)
}

func (p *Publisher) Record(utterance transcript.Utterance) error {
	data, err := json.Marshal(Message{
		SessionID: p.sessionID,
		Role:      utterance.Role,
		Text:      utterance.Text,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal utterance: %w", err)
	}

	if err := p.conn.Publish(p.Subject(utterance.Role), data); err != nil {
		return fmt.Errorf("failed to publish utterance: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p == nil || p.close == nil {
		return
	}
	logger.Info("closing NATS connection")
	p.close()
}
