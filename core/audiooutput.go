package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

var errPlaybackHeld = errors.New("playback device is still held")

type audioOutput struct {
	client    AudioOutput
	isPlaying atomic.Bool
}

func (a *audioOutput) Set(client AudioOutput) {
	if a == nil {
		return
	}
	a.client = client
	a.isPlaying.Store(false)
}

func (a *audioOutput) IsConfigured() bool { return a != nil && a.client != nil }
func (a *audioOutput) IsPlaying() bool    { return a != nil && a.isPlaying.Load() }

// Start hands the device a render function it pulls samples from.
func (a *audioOutput) Start(ctx context.Context, render func(out []float32)) error {
	if !a.IsConfigured() {
		return nil
	}
	if !a.isPlaying.CompareAndSwap(false, true) {
		return errPlaybackHeld
	}

	if err := a.client.StartPlayback(ctx, render); err != nil {
		a.isPlaying.Store(false)
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (a *audioOutput) Release() error {
	if !a.IsPlaying() {
		return nil
	}
	if err := a.client.StopPlayback(); err != nil {
		return fmt.Errorf("failed to release playback device: %w", err)
	}
	a.isPlaying.Store(false)
	return nil
}
