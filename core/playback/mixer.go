package playback

import (
	"sync"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

// Clock reports the current position on the output timeline, in frames.
type Clock interface {
	Position() int64
}

// Handle controls a single scheduled source.
type Handle interface {
	Stop()
}

// Sink accepts sources scheduled at absolute frame positions on its own
// clock. onEnded is called once the source has been fully rendered; it is not
// called for stopped sources.
type Sink interface {
	Clock
	SampleRate() int
	Schedule(samples []float32, at int64, onEnded func()) (Handle, error)
}

// Mixer sums scheduled sources into a single output through one gain stage.
// Its clock is the number of frames rendered so far, so it only advances
// while an output device pulls from Render.
type Mixer struct {
	sampleRate int

	mu       sync.Mutex
	rendered int64
	nextID   uint64
	sources  map[uint64]*mixerSource

	gain     float32
	paused   bool
	duck     float32
	duckTill time.Time
	now      func() time.Time
}

type mixerSource struct {
	mixer   *Mixer
	id      uint64
	start   int64
	samples []float32
	onEnded func()
}

func NewMixer(sampleRate int) *Mixer {
	return &Mixer{
		sampleRate: sampleRate,
		sources:    make(map[uint64]*mixerSource),
		gain:       1,
		duck:       1,
		now:        time.Now,
	}
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

func (m *Mixer) Position() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rendered
}

// Now is Position on the wall timeline.
func (m *Mixer) Now() time.Duration {
	return audio.Duration(int(m.Position()), m.sampleRate)
}

func (m *Mixer) Schedule(samples []float32, at int64, onEnded func()) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := at
	if start < m.rendered {
		start = m.rendered
	}

	m.nextID++
	source := &mixerSource{mixer: m, id: m.nextID, start: start, samples: samples, onEnded: onEnded}
	m.sources[source.id] = source
	return source, nil
}

func (s *mixerSource) Stop() {
	s.mixer.mu.Lock()
	delete(s.mixer.sources, s.id)
	s.mixer.mu.Unlock()
}

// SetPaused silences the output without touching scheduled sources.
func (m *Mixer) SetPaused(paused bool) {
	m.mu.Lock()
	m.paused = paused
	m.mu.Unlock()
}

func (m *Mixer) SetGain(gain float32) {
	m.mu.Lock()
	m.gain = max(gain, 0)
	m.mu.Unlock()
}

// Duck scales the output by level until d has elapsed.
func (m *Mixer) Duck(level float32, d time.Duration) {
	m.mu.Lock()
	m.duck = min(max(level, 0), 1)
	m.duckTill = m.now().Add(d)
	m.mu.Unlock()
}

// Gain returns the effective output gain.
func (m *Mixer) Gain() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.effectiveGain()
}

func (m *Mixer) effectiveGain() float32 {
	if m.paused {
		return 0
	}
	gain := m.gain
	if m.duck < 1 {
		if m.now().Before(m.duckTill) {
			gain *= m.duck
		} else {
			m.duck = 1
		}
	}
	return gain
}

// Pending reports how many sources are scheduled or playing.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

// Render fills out with the next len(out) frames and advances the clock.
func (m *Mixer) Render(out []float32) {
	clear(out)

	var ended []func()
	m.mu.Lock()
	windowStart := m.rendered
	windowEnd := windowStart + int64(len(out))
	for id, source := range m.sources {
		sourceEnd := source.start + int64(len(source.samples))
		from := max(source.start, windowStart)
		to := min(sourceEnd, windowEnd)
		for frame := from; frame < to; frame++ {
			out[frame-windowStart] += source.samples[frame-source.start]
		}

		if sourceEnd <= windowEnd {
			delete(m.sources, id)
			if source.onEnded != nil {
				ended = append(ended, source.onEnded)
			}
		}
	}

	gain := m.effectiveGain()
	for i := range out {
		out[i] = min(max(out[i]*gain, -1), 1)
	}
	m.rendered = windowEnd
	m.mu.Unlock()

	for _, onEnded := range ended {
		onEnded()
	}
}
