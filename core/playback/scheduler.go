package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

const (
	DefaultLead      = 50 * time.Millisecond
	DefaultDebounce  = 250 * time.Millisecond
	DefaultQueueSize = 256
)

type Config struct {
	// Lead is the jitter buffer added when the queue has run dry.
	Lead time.Duration
	// Debounce is how long the active set has to stay empty before
	// speaking is reported as finished.
	Debounce time.Duration
	// QueueSize bounds the number of chunks waiting for decode.
	QueueSize int
}

func DefaultConfig() Config {
	return Config{Lead: DefaultLead, Debounce: DefaultDebounce, QueueSize: DefaultQueueSize}
}

// Playback is a buffer scheduled on the output clock. StartFrame and Frames
// are authoritative; Start and Duration are derived from them.
type Playback struct {
	ID         uint64
	StartFrame int64
	Frames     int64
	Start      time.Duration
	Duration   time.Duration

	handle Handle
}

func (p Playback) End() time.Duration { return p.Start + p.Duration }

type decodeTask struct {
	frame audio.WireAudioFrame
	epoch uint64
	// barrier is closed once every task queued before it was processed.
	barrier chan struct{}
}

// Scheduler schedules decoded audio back to back on a shared output clock.
//
// Chunks go through a single worker so decode and schedule never reorder.
// HardStop is synchronous and bumps a stop epoch; tasks queued before the
// stop see a stale epoch and do nothing.
type Scheduler struct {
	sink   Sink
	config Config
	decode func(audio.WireAudioFrame) ([]float32, error)

	onSpeakingChanged func(bool)

	mu          sync.Mutex
	cursor      int64
	cursorSet   bool
	nextID      uint64
	active      map[uint64]Playback
	epoch       uint64
	speaking    bool
	debounce    *time.Timer
	debounceGen uint64
	closed      bool

	// notifyMu keeps speaking notifications in state-change order.
	notifyMu sync.Mutex

	tasks     chan decodeTask
	done      chan struct{}
	closeOnce sync.Once
}

type SchedulerOption func(*Scheduler)

func WithConfig(config Config) SchedulerOption {
	return func(s *Scheduler) {
		if config.QueueSize <= 0 {
			config.QueueSize = DefaultQueueSize
		}
		if config.Lead < 0 {
			config.Lead = 0
		}
		if config.Debounce < 0 {
			config.Debounce = 0
		}
		s.config = config
	}
}

// WithSpeakingChangedCallback registers a callback for speaking transitions.
// The callback must not call back into the scheduler.
func WithSpeakingChangedCallback(callback func(isSpeaking bool)) SchedulerOption {
	return func(s *Scheduler) { s.onSpeakingChanged = callback }
}

func withDecoder(decode func(audio.WireAudioFrame) ([]float32, error)) SchedulerOption {
	return func(s *Scheduler) { s.decode = decode }
}

func NewScheduler(sink Sink, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sink:   sink,
		config: DefaultConfig(),
		decode: audio.Decode,
		active: make(map[uint64]Playback),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tasks = make(chan decodeTask, s.config.QueueSize)
	go s.run()
	return s
}

// Enqueue queues a chunk for decode and scheduling in arrival order.
// It reports false if the scheduler is closed.
func (s *Scheduler) Enqueue(frame audio.WireAudioFrame) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	task := decodeTask{frame: frame, epoch: s.epoch}
	s.mu.Unlock()

	select {
	case s.tasks <- task:
		return true
	case <-s.done:
		return false
	}
}

// Sync waits until every chunk queued so far has been processed.
func (s *Scheduler) Sync(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case s.tasks <- decodeTask{barrier: barrier}:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	for {
		select {
		case <-s.done:
			return
		case task := <-s.tasks:
			if task.barrier != nil {
				close(task.barrier)
				continue
			}
			s.process(task)
		}
	}
}

func (s *Scheduler) process(task decodeTask) {
	samples, err := s.decode(task.frame)
	if err != nil {
		chunksDropped.Add(context.Background(), 1)
		logger.Warn("dropping malformed audio chunk", slog.String("error", err.Error()))
		return
	}
	if len(samples) == 0 {
		return
	}

	rate, ok := audio.SampleRateFromMime(task.frame.MimeType)
	if !ok {
		rate = audio.PlaybackSampleRate
	}
	samples = audio.Resample(samples, rate, s.sink.SampleRate())

	if _, scheduled := s.schedule(samples, task.epoch); scheduled {
		chunksScheduled.Add(context.Background(), 1)
	}
}

func (s *Scheduler) schedule(samples []float32, epoch uint64) (Playback, bool) {
	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		return Playback{}, false
	}

	rate := s.sink.SampleRate()
	now := s.sink.Position()
	if !s.cursorSet || s.cursor < now {
		s.cursor = now + audio.Frames(s.config.Lead, rate)
		s.cursorSet = true
	}

	s.nextID++
	id := s.nextID
	frames := int64(len(samples))
	start := audio.Duration(int(s.cursor), rate)
	playback := Playback{
		ID:         id,
		StartFrame: s.cursor,
		Frames:     frames,
		Start:      start,
		Duration:   audio.Duration(int(s.cursor+frames), rate) - start,
	}

	handle, err := s.sink.Schedule(samples, playback.StartFrame, func() { s.ended(id) })
	if err != nil {
		s.mu.Unlock()
		chunksDropped.Add(context.Background(), 1)
		logger.Warn("failed to schedule audio chunk", slog.String("error", err.Error()))
		return Playback{}, false
	}
	playback.handle = handle

	s.cursor += frames
	s.active[id] = playback
	s.cancelDebounceLocked()

	changed := !s.speaking
	s.speaking = true
	s.notifyAndUnlock(changed, true)
	return playback, true
}

func (s *Scheduler) ended(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; !ok {
		return
	}
	delete(s.active, id)

	if len(s.active) > 0 || !s.speaking {
		return
	}

	s.cancelDebounceLocked()
	gen := s.debounceGen
	s.debounce = time.AfterFunc(s.config.Debounce, func() { s.settle(gen) })
}

func (s *Scheduler) settle(gen uint64) {
	s.mu.Lock()
	if gen != s.debounceGen || len(s.active) > 0 || !s.speaking {
		s.mu.Unlock()
		return
	}
	s.speaking = false
	s.debounce = nil
	s.notifyAndUnlock(true, false)
}

func (s *Scheduler) cancelDebounceLocked() {
	s.debounceGen++
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

// notifyAndUnlock releases s.mu and, if changed, delivers the speaking
// notification before any later transition can deliver its own.
func (s *Scheduler) notifyAndUnlock(changed, isSpeaking bool) {
	if !changed || s.onSpeakingChanged == nil {
		s.mu.Unlock()
		return
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	s.onSpeakingChanged(isSpeaking)
}

// HardStop stops everything scheduled or playing, clears the cursor and
// reports not speaking before returning.
func (s *Scheduler) HardStop() {
	s.mu.Lock()
	s.epoch++
	for id, playback := range s.active {
		playback.handle.Stop()
		delete(s.active, id)
	}
	s.cursor = 0
	s.cursorSet = false
	s.cancelDebounceLocked()

	changed := s.speaking
	s.speaking = false
	hardStops.Add(context.Background(), 1)
	s.notifyAndUnlock(changed, false)
}

func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Active returns a snapshot of the scheduled and playing buffers.
func (s *Scheduler) Active() []Playback {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Playback, 0, len(s.active))
	for _, playback := range s.active {
		active = append(active, playback)
	}
	return active
}

// Cursor returns the next start frame and whether it is set.
func (s *Scheduler) Cursor() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, s.cursorSet
}

func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.HardStop()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
