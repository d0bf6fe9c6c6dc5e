package video

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	DefaultMaxWidth  = 320
	DefaultMaxHeight = 240
	DefaultQuality   = 40

	MimeType = "image/jpeg"
)

// Encoder turns frames into small JPEGs for the model. Frames are only ever
// scaled down, keeping their aspect ratio.
type Encoder struct {
	MaxWidth  int
	MaxHeight int
	// Quality is the JPEG quality, 1-100.
	Quality int
}

func DefaultEncoder() Encoder {
	return Encoder{MaxWidth: DefaultMaxWidth, MaxHeight: DefaultMaxHeight, Quality: DefaultQuality}
}

func (e Encoder) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no frame to encode")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	width, height := fit(bounds.Dx(), bounds.Dy(), e.MaxWidth, e.MaxHeight)
	if width != bounds.Dx() || height != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// fit returns the largest size within maxWidth x maxHeight with the aspect
// ratio of width x height. A zero limit is ignored.
func fit(width, height, maxWidth, maxHeight int) (int, int) {
	scale := 1.0
	if maxWidth > 0 && width > maxWidth {
		scale = float64(maxWidth) / float64(width)
	}
	if maxHeight > 0 && float64(height)*scale > float64(maxHeight) {
		scale = float64(maxHeight) / float64(height)
	}
	if scale >= 1 {
		return width, height
	}
	return max(int(float64(width)*scale), 1), max(int(float64(height)*scale), 1)
}
