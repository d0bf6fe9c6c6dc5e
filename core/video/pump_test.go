package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type flakySource struct {
	calls atomic.Int32
	img   image.Image
}

func (s *flakySource) Frame(ctx context.Context) (image.Image, error) {
	if s.calls.Add(1)%2 == 1 {
		return nil, errors.New("camera busy")
	}
	return s.img, nil
}

func TestPumpSendsEncodedFramesAndSkipsFailures(t *testing.T) {
	source := &flakySource{img: solid(64, 48)}
	var mu sync.Mutex
	var frames [][]byte
	pump := NewPump(source, func(jpeg []byte) error {
		mu.Lock()
		defer mu.Unlock()
		frames = append(frames, jpeg)
		return nil
	}, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pump.Run(ctx) }()

	waitFor(t, "3 frames", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) >= 3
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected pump to stop cleanly, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected pump to stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if !bytes.HasPrefix(frames[0], []byte{0xFF, 0xD8}) {
		t.Fatalf("expected a jpeg start marker, got % x", frames[0][:2])
	}
	if calls := int(source.calls.Load()); calls < 2*len(frames)-1 {
		t.Fatalf("expected failed frames to be skipped, got %d calls for %d frames", calls, len(frames))
	}
}

func TestPumpKeepsRunningWhenSendFails(t *testing.T) {
	var attempts atomic.Int32
	pump := NewPump(NewStillSource(solid(8, 8)), func([]byte) error {
		attempts.Add(1)
		return errors.New("paused")
	}, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx)

	waitFor(t, "3 send attempts", func() bool { return attempts.Load() >= 3 })
}

func TestPumpRequiresSourceAndSender(t *testing.T) {
	if err := NewPump(nil, func([]byte) error { return nil }).Run(context.Background()); err == nil {
		t.Fatalf("expected an error without a source")
	}
	if err := NewPump(NewStillSource(), nil).Run(context.Background()); err == nil {
		t.Fatalf("expected an error without a sender")
	}
}

func TestStillSourceCyclesThroughFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	for i, path := range paths {
		file, err := os.Create(path)
		if err != nil {
			t.Fatalf("failed to create %s: %v", path, err)
		}
		if err := png.Encode(file, solid(10*(i+1), 10)); err != nil {
			t.Fatalf("failed to encode %s: %v", path, err)
		}
		if err := file.Close(); err != nil {
			t.Fatalf("failed to close %s: %v", path, err)
		}
	}

	source, err := LoadStillSource(paths...)
	if err != nil {
		t.Fatalf("expected files to load, got %v", err)
	}

	widths := []int{}
	for range 3 {
		img, err := source.Frame(context.Background())
		if err != nil {
			t.Fatalf("expected a frame, got %v", err)
		}
		widths = append(widths, img.Bounds().Dx())
	}
	if !slices.Equal(widths, []int{10, 20, 10}) {
		t.Fatalf("expected widths [10 20 10], got %v", widths)
	}

	if _, err := LoadStillSource(filepath.Join(dir, "missing.png")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
	if _, err := NewStillSource().Frame(context.Background()); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %s before the deadline", what)
}
