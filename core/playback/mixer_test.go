package playback

import (
	"context"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

func TestMixerPlacesSourcesAtTheirStartFrame(t *testing.T) {
	mixer := NewMixer(1000)

	if _, err := mixer.Schedule([]float32{0.5, 0.5}, 3, nil); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	out := make([]float32, 6)
	mixer.Render(out)

	expected := []float32{0, 0, 0, 0.5, 0.5, 0}
	for i := range expected {
		if out[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, out)
		}
	}
	if got := mixer.Position(); got != 6 {
		t.Fatalf("expected clock to advance to frame 6, got %d", got)
	}
	if got := mixer.Now(); got != 6*time.Millisecond {
		t.Fatalf("expected clock to advance to 6ms, got %v", got)
	}
}

func TestMixerCallsOnEndedOnceSourceIsRendered(t *testing.T) {
	mixer := NewMixer(1000)
	var ended atomic.Int32
	mixer.Schedule([]float32{0.1, 0.1, 0.1}, 0, func() { ended.Add(1) })

	mixer.Render(make([]float32, 2))
	if ended.Load() != 0 {
		t.Fatalf("expected source to still be playing")
	}

	mixer.Render(make([]float32, 2))
	if ended.Load() != 1 {
		t.Fatalf("expected onEnded once, got %d", ended.Load())
	}
	if mixer.Pending() != 0 {
		t.Fatalf("expected finished source to be removed")
	}
}

func TestMixerStoppedSourceIsSilentAndNeverEnds(t *testing.T) {
	mixer := NewMixer(1000)
	var ended atomic.Int32
	handle, _ := mixer.Schedule([]float32{0.1, 0.1}, 0, func() { ended.Add(1) })

	handle.Stop()
	out := make([]float32, 4)
	mixer.Render(out)

	for _, sample := range out {
		if sample != 0 {
			t.Fatalf("expected silence after stop, got %v", out)
		}
	}
	if ended.Load() != 0 {
		t.Fatalf("expected stopped source to not report ended")
	}
}

func TestMixerPauseSilencesWithoutDroppingSources(t *testing.T) {
	mixer := NewMixer(1000)
	mixer.Schedule([]float32{0.5, 0.5, 0.5, 0.5}, 0, nil)

	mixer.SetPaused(true)
	out := make([]float32, 2)
	mixer.Render(out)
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("expected paused output to be silent, got %v", out)
	}

	mixer.SetPaused(false)
	mixer.Render(out)
	if out[0] != 0.5 || out[1] != 0.5 {
		t.Fatalf("expected remaining samples after resume, got %v", out)
	}
}

func TestMixerDuckIsTransient(t *testing.T) {
	mixer := NewMixer(1000)
	now := time.Unix(0, 0)
	mixer.now = func() time.Time { return now }

	mixer.Duck(0.25, 100*time.Millisecond)
	if got := mixer.Gain(); got != 0.25 {
		t.Fatalf("expected ducked gain 0.25, got %v", got)
	}

	now = now.Add(200 * time.Millisecond)
	if got := mixer.Gain(); got != 1 {
		t.Fatalf("expected gain to recover after duck, got %v", got)
	}
}

func TestSchedulerWithMixerPlaysChunksGaplessAndStopsSpeaking(t *testing.T) {
	mixer := NewMixer(audio.PlaybackSampleRate)
	var changes []bool
	changed := make(chan bool, 4)
	scheduler := NewScheduler(mixer,
		WithConfig(Config{Lead: 50 * time.Millisecond, Debounce: 30 * time.Millisecond}),
		WithSpeakingChangedCallback(func(isSpeaking bool) { changed <- isSpeaking }),
	)
	defer scheduler.Close()

	for range 3 {
		scheduler.Enqueue(testChunk(20 * time.Millisecond))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := scheduler.Sync(ctx); err != nil {
		t.Fatalf("expected scheduler to drain, got %v", err)
	}

	active := scheduler.Active()
	var total time.Duration
	for _, playback := range active {
		total += playback.Duration
	}
	if len(active) != 3 || total != 60*time.Millisecond {
		t.Fatalf("expected 3 buffers totalling 60ms, got %d buffers totalling %v", len(active), total)
	}

	// 120ms covers the lead, all three chunks and some trailing silence.
	out := make([]float32, audio.PlaybackSampleRate*120/1000)
	mixer.Render(out)
	if out[len(out)-1] != 0 || out[audio.PlaybackSampleRate*60/1000] == 0 || out[0] != 0 {
		t.Fatalf("expected audio between 50ms and 110ms only")
	}

	deadline := time.After(time.Second)
	for len(changes) < 2 {
		select {
		case isSpeaking := <-changed:
			changes = append(changes, isSpeaking)
		case <-deadline:
			t.Fatalf("expected speaking to go true then false, got %v", changes)
		}
	}
	if !changes[0] || changes[1] {
		t.Fatalf("expected speaking transitions [true false], got %v", changes)
	}
}

func TestSchedulerWithMixerDoesNotOverlapChunksOfOddLength(t *testing.T) {
	mixer := NewMixer(audio.PlaybackSampleRate)
	scheduler := NewScheduler(mixer, WithConfig(Config{Lead: 50 * time.Millisecond, Debounce: time.Second}))
	defer scheduler.Close()

	// 1000 samples at 24kHz is not a whole number of nanoseconds.
	chunk := make([]float32, 1000)
	for i := range chunk {
		chunk[i] = 0.25
	}
	for range 3 {
		scheduler.Enqueue(audio.Encode(chunk, audio.PlaybackSampleRate))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := scheduler.Sync(ctx); err != nil {
		t.Fatalf("expected scheduler to drain, got %v", err)
	}

	active := scheduler.Active()
	if len(active) != 3 {
		t.Fatalf("expected 3 scheduled buffers, got %d", len(active))
	}
	slices.SortFunc(active, func(a, b Playback) int { return int(a.StartFrame - b.StartFrame) })
	for i := 1; i < len(active); i++ {
		if active[i].Start != active[i-1].End() {
			t.Fatalf("expected reported start %v to equal previous end %v", active[i].Start, active[i-1].End())
		}
	}

	out := make([]float32, 1200+3000+10)
	mixer.Render(out)

	var audible, overlapping int
	for _, sample := range out {
		if sample != 0 {
			audible++
		}
		if sample > 0.26 {
			overlapping++
		}
	}
	if audible != 3000 || overlapping != 0 {
		t.Fatalf("expected 3000 audible frames and no overlap, got audible=%d overlapping=%d", audible, overlapping)
	}
}
