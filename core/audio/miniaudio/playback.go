package miniaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

type playbackClient struct {
	device *malgo.Device

	mu      sync.Mutex
	render  func(out []float32)
	samples []float32
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = audio.PlaybackSampleRate
	config.Playback.Format = malgo.FormatF32
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = audio.PlaybackSampleRate / 50 // 20ms
	config.Periods = 3

	var err error
	if c.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{Data: c.processAudio}); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) StartPlayback(_ context.Context, render func(out []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errDeviceNotInitialized
	}

	c.render = render
	if c.device.IsStarted() {
		return nil
	}
	if err := c.device.Start(); err != nil {
		c.render = nil
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) StopPlayback() error {
	c.mu.Lock()
	c.render = nil
	device := c.device
	c.mu.Unlock()

	if device == nil || !device.IsStarted() {
		return nil
	}
	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.render = nil
	return nil
}

// processAudio pulls one period from render and writes it as little endian
// float32. Without a render func the period is left silent.
func (c *playbackClient) processAudio(pOutput, _ []byte, frameCount uint32) {
	c.mu.Lock()
	render := c.render
	if cap(c.samples) < int(frameCount) {
		c.samples = make([]float32, frameCount)
	}
	samples := c.samples[:frameCount]
	c.mu.Unlock()

	clear(samples)
	if render != nil {
		render(samples)
	}
	for i, sample := range samples {
		offset := i * 4
		if offset+4 > len(pOutput) {
			break
		}
		binary.LittleEndian.PutUint32(pOutput[offset:], math.Float32bits(sample))
	}
}
