package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const DefaultInterval = 500 * time.Millisecond

// Pump grabs, encodes and sends one frame per interval until its context is
// done. A failed grab or send skips the tick.
type Pump struct {
	source   FrameSource
	send     func(jpeg []byte) error
	encoder  Encoder
	interval time.Duration
}

type PumpOption func(*Pump)

func WithInterval(interval time.Duration) PumpOption {
	return func(p *Pump) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

func WithEncoder(encoder Encoder) PumpOption {
	return func(p *Pump) { p.encoder = encoder }
}

func NewPump(source FrameSource, send func(jpeg []byte) error, opts ...PumpOption) *Pump {
	p := &Pump{
		source:   source,
		send:     send,
		encoder:  DefaultEncoder(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pump) Interval() time.Duration { return p.interval }

// Run blocks until ctx is done and returns nil in that case.
func (p *Pump) Run(ctx context.Context) error {
	if p.source == nil || p.send == nil {
		return fmt.Errorf("video pump needs a frame source and a sender")
	}

	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to wait for next frame: %w", err)
		}
		p.tick(ctx)
	}
}

func (p *Pump) tick(ctx context.Context) {
	img, err := p.source.Frame(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			framesSkipped.Add(ctx, 1)
			logger.Warn("failed to grab video frame", slog.String("error", err.Error()))
		}
		return
	}

	frame, err := p.encoder.Encode(img)
	if err != nil {
		framesSkipped.Add(ctx, 1)
		logger.Warn("failed to encode video frame", slog.String("error", err.Error()))
		return
	}

	if err := p.send(frame); err != nil {
		framesSkipped.Add(ctx, 1)
		logger.Debug("video frame not sent", slog.String("error", err.Error()))
		return
	}
	framesSent.Add(ctx, 1)
}
