package video

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func solid(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func TestEncoderDownscalesPreservingAspect(t *testing.T) {
	testCases := []struct {
		name           string
		width, height  int
		expectedWidth  int
		expectedHeight int
	}{
		{name: "landscape 16:9", width: 1280, height: 720, expectedWidth: 320, expectedHeight: 180},
		{name: "portrait", width: 480, height: 960, expectedWidth: 120, expectedHeight: 240},
		{name: "4:3", width: 640, height: 480, expectedWidth: 320, expectedHeight: 240},
		{name: "already small", width: 100, height: 50, expectedWidth: 100, expectedHeight: 50},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			data, err := DefaultEncoder().Encode(solid(testCase.width, testCase.height))
			if err != nil {
				t.Fatalf("expected frame to encode, got %v", err)
			}

			decoded, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("expected a valid jpeg, got %v", err)
			}
			if got := decoded.Bounds().Dx(); got != testCase.expectedWidth {
				t.Fatalf("expected width %d, got %d", testCase.expectedWidth, got)
			}
			if got := decoded.Bounds().Dy(); got != testCase.expectedHeight {
				t.Fatalf("expected height %d, got %d", testCase.expectedHeight, got)
			}
		})
	}
}

func TestEncoderRejectsEmptyFrames(t *testing.T) {
	if _, err := DefaultEncoder().Encode(nil); err == nil {
		t.Fatalf("expected an error for a nil frame")
	}
	if _, err := DefaultEncoder().Encode(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Fatalf("expected an error for an empty frame")
	}
}

func TestFitIgnoresZeroLimits(t *testing.T) {
	if width, height := fit(1000, 500, 0, 100); width != 200 || height != 100 {
		t.Fatalf("expected 200x100, got %dx%d", width, height)
	}
	if width, height := fit(1000, 500, 0, 0); width != 1000 || height != 500 {
		t.Fatalf("expected 1000x500, got %dx%d", width, height)
	}
}
