package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/koscakluka/ema-live/core/capture"
)

var errCaptureHeld = errors.New("capture device is still held")

type audioInput struct {
	client AudioInput
	// isCapturing stays set when a release fails so the device is never
	// acquired twice.
	isCapturing atomic.Bool
}

func (a *audioInput) Set(client AudioInput) {
	if a == nil {
		return
	}
	a.client = client
	a.isCapturing.Store(false)
}

func (a *audioInput) IsConfigured() bool { return a != nil && a.client != nil }
func (a *audioInput) IsCapturing() bool  { return a != nil && a.isCapturing.Load() }

// Acquire starts capture. Any failure to open the device is reported as a
// permission error since the caller cannot tell the two apart.
func (a *audioInput) Acquire(ctx context.Context, onAudio func(pcm []byte)) error {
	if !a.IsConfigured() {
		return nil
	}
	if !a.isCapturing.CompareAndSwap(false, true) {
		return errCaptureHeld
	}

	if err := a.client.StartCapture(ctx, onAudio); err != nil {
		a.isCapturing.Store(false)
		return &capture.PermissionError{Device: deviceName(a.client), Err: err}
	}
	return nil
}

func (a *audioInput) Release() error {
	if !a.IsCapturing() {
		return nil
	}
	if err := a.client.StopCapture(); err != nil {
		return fmt.Errorf("failed to release capture device: %w", err)
	}
	a.isCapturing.Store(false)
	return nil
}

func deviceName(client any) string {
	if named, ok := client.(interface{ DeviceName() string }); ok {
		return named.DeviceName()
	}
	return ""
}
