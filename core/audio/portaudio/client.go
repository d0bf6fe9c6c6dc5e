package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-live/core/audio"
)

// Client drives the default input and output devices with two callback
// streams: 16 kHz linear16 capture and 24 kHz float playback.
type Client struct {
	framesPerBuffer int

	mu       sync.Mutex
	capture  *portaudio.Stream
	playback *portaudio.Stream
	onAudio  func(pcm []byte)
	render   func(out []float32)
}

func NewClient(framesPerBuffer int) (*Client, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 480
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &Client{framesPerBuffer: framesPerBuffer}, nil
}

func (c *Client) DeviceName() string {
	device, err := portaudio.DefaultInputDevice()
	if err != nil || device == nil {
		return ""
	}
	return device.Name
}

func (c *Client) StartCapture(_ context.Context, onAudio func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture != nil {
		c.onAudio = onAudio
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, c.framesPerBuffer, c.processInput)
	if err != nil {
		return fmt.Errorf("failed to open capture stream: %w", err)
	}
	c.onAudio = onAudio
	if err := stream.Start(); err != nil {
		c.onAudio = nil
		return errors.Join(fmt.Errorf("failed to start capture stream: %w", err), stream.Close())
	}
	c.capture = stream
	return nil
}

func (c *Client) processInput(in []int16) {
	c.mu.Lock()
	onAudio := c.onAudio
	c.mu.Unlock()
	if onAudio == nil {
		return
	}

	pcm := make([]byte, len(in)*2)
	for i, sample := range in {
		pcm[2*i] = byte(sample)
		pcm[2*i+1] = byte(sample >> 8)
	}
	onAudio(pcm)
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	stream := c.capture
	c.capture = nil
	c.onAudio = nil
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		return errors.Join(fmt.Errorf("failed to stop capture stream: %w", err), stream.Close())
	}
	return stream.Close()
}

func (c *Client) StartPlayback(_ context.Context, render func(out []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playback != nil {
		c.render = render
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, audio.PlaybackSampleRate, c.framesPerBuffer, c.processOutput)
	if err != nil {
		return fmt.Errorf("failed to open playback stream: %w", err)
	}
	c.render = render
	if err := stream.Start(); err != nil {
		c.render = nil
		return errors.Join(fmt.Errorf("failed to start playback stream: %w", err), stream.Close())
	}
	c.playback = stream
	return nil
}

func (c *Client) processOutput(out []float32) {
	c.mu.Lock()
	render := c.render
	c.mu.Unlock()

	clear(out)
	if render != nil {
		render(out)
	}
}

func (c *Client) StopPlayback() error {
	c.mu.Lock()
	stream := c.playback
	c.playback = nil
	c.render = nil
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		return errors.Join(fmt.Errorf("failed to stop playback stream: %w", err), stream.Close())
	}
	return stream.Close()
}

func (c *Client) Close() error {
	return errors.Join(c.StopCapture(), c.StopPlayback(), portaudio.Terminate())
}
