package miniaudio

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-live/core/audio/miniaudio"

var logger = otelslog.NewLogger(scopeName)

// Client opens the default capture and playback devices. Capture delivers
// 16 kHz linear16, playback pulls 24 kHz float samples.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", slog.String("message", message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.playbackClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}
	if err := client.captureClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

// DeviceName names the default capture device, if the backend reports one.
func (c *Client) DeviceName() string {
	devices, err := c.audioContext.Devices(malgo.Capture)
	if err != nil {
		return ""
	}
	for _, device := range devices {
		if device.IsDefault != 0 {
			return device.Name()
		}
	}
	return ""
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}
