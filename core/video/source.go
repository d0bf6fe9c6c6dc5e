package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/webp"
)

// FrameSource produces the current frame on demand.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
}

var ErrNoFrames = errors.New("frame source has no frames")

// StillSource cycles through a fixed set of images.
type StillSource struct {
	mu     sync.Mutex
	images []image.Image
	next   int
}

func NewStillSource(images ...image.Image) *StillSource {
	return &StillSource{images: images}
}

// LoadStillSource decodes JPEG, PNG or WebP files into a StillSource.
func LoadStillSource(paths ...string) (*StillSource, error) {
	images := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		img, err := loadImage(path)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return NewStillSource(images...), nil
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", path, err)
	}
	return img, nil
}

func (s *StillSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.images) == 0 {
		return nil, ErrNoFrames
	}
	img := s.images[s.next]
	s.next = (s.next + 1) % len(s.images)
	return img, nil
}
