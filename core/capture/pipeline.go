package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-live/core/audio"
)

// Sender receives encoded blocks. Implementations must not block.
type Sender interface {
	SendAudio(frame audio.WireAudioFrame) error
}

// Pipeline frames microphone audio into fixed size blocks, reports their
// level and forwards them to the current Sender unless muted or paused.
type Pipeline struct {
	sampleRate int
	framer     *audio.Framer
	framerMu   sync.Mutex

	muted  atomic.Bool
	paused atomic.Bool

	senderMu sync.RWMutex
	sender   Sender

	onVolume func(level float64)
	onPCM    func(pcm []byte)
}

type Option func(*Pipeline)

func WithBlockSize(size int) Option {
	return func(p *Pipeline) { p.framer = audio.NewFramer(size) }
}

func WithSampleRate(sampleRate int) Option {
	return func(p *Pipeline) { p.sampleRate = sampleRate }
}

// WithVolumeCallback registers a callback for the RMS level of every block,
// including blocks that are not sent.
func WithVolumeCallback(callback func(level float64)) Option {
	return func(p *Pipeline) { p.onVolume = callback }
}

// WithPCMTap registers a callback for the raw linear16 bytes of every block
// that passes the mute and pause gate.
func WithPCMTap(callback func(pcm []byte)) Option {
	return func(p *Pipeline) { p.onPCM = callback }
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		sampleRate: audio.DefaultSampleRate,
		framer:     audio.NewFramer(audio.DefaultBlockSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) SetSender(sender Sender) {
	p.senderMu.Lock()
	p.sender = sender
	p.senderMu.Unlock()
}

func (p *Pipeline) SetMuted(muted bool)   { p.muted.Store(muted) }
func (p *Pipeline) SetPaused(paused bool) { p.paused.Store(paused) }
func (p *Pipeline) IsMuted() bool         { return p.muted.Load() }
func (p *Pipeline) IsPaused() bool        { return p.paused.Load() }
func (p *Pipeline) BlockSize() int        { return p.framer.Size() }

// WritePCM16 accepts linear16 little-endian bytes as delivered by a device.
func (p *Pipeline) WritePCM16(pcm []byte) {
	p.Write(audio.PCM16ToFloat32(pcm))
}

// Write accepts samples in [-1, 1] at the pipeline's sample rate.
func (p *Pipeline) Write(samples []float32) {
	p.framerMu.Lock()
	defer p.framerMu.Unlock()
	p.framer.Write(samples, p.processBlock)
}

// Reset drops a partially collected block, e.g. across reconnects.
func (p *Pipeline) Reset() {
	p.framerMu.Lock()
	p.framer.Reset()
	p.framerMu.Unlock()
}

func (p *Pipeline) processBlock(block []float32) {
	if p.onVolume != nil {
		p.onVolume(audio.RMS(block))
	}

	if p.muted.Load() || p.paused.Load() {
		blocksGated.Add(context.Background(), 1)
		return
	}

	if p.onPCM != nil {
		p.onPCM(audio.Float32ToPCM16(block))
	}

	// The read lock is held across the send so SetSender returns only once
	// no block is in flight to the previous sender.
	p.senderMu.RLock()
	defer p.senderMu.RUnlock()
	if p.sender == nil {
		return
	}
	if err := p.sender.SendAudio(audio.Encode(block, p.sampleRate)); err != nil {
		logger.Warn("failed to send audio block", slog.String("error", err.Error()))
		return
	}
	blocksSent.Add(context.Background(), 1)
}
