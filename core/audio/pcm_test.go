package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTripWithinQuantization(t *testing.T) {
	samples := make([]float32, 0, 2001)
	for i := -1000; i <= 1000; i++ {
		samples = append(samples, float32(i)/1000)
	}
	samples = append(samples, 0.123456, -0.987654, 1, -1)

	decoded, err := Decode(Encode(samples, DefaultSampleRate))
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}

	for i := range samples {
		if diff := math.Abs(float64(samples[i] - decoded[i])); diff > 1.0/32768 {
			t.Fatalf("sample %d: expected |%v - %v| <= 1/32768, got %v", i, samples[i], decoded[i], diff)
		}
	}
}

func TestEncodeDecodeExactValuesAreBitIdentical(t *testing.T) {
	samples := []float32{0, 0, 0.5, -0.5, -1, 16384.0 / 32768, -1.0 / 32768, 32767.0 / 32768}

	decoded, err := Decode(Encode(samples, DefaultSampleRate))
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}

	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("sample %d: expected %v, got %v", i, samples[i], decoded[i])
		}
	}
}

func TestEncodeClampsOutOfRangeSamples(t *testing.T) {
	decoded, err := Decode(Encode([]float32{2, -3}, DefaultSampleRate))
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}

	if decoded[0] != 32767.0/32768 {
		t.Fatalf("expected positive overflow to clamp to max int16, got %v", decoded[0])
	}
	if decoded[1] != -1 {
		t.Fatalf("expected negative overflow to clamp to -1, got %v", decoded[1])
	}
}

func TestEncodeSetsMimeType(t *testing.T) {
	frame := Encode([]float32{0}, 16000)

	if frame.MimeType != "audio/pcm;rate=16000" {
		t.Fatalf("expected audio/pcm;rate=16000, got %q", frame.MimeType)
	}
	if got := GetDefaultEncodingInfo().MimeType(); got != frame.MimeType {
		t.Fatalf("expected encoding info mime %q, got %q", frame.MimeType, got)
	}
}

func TestEncodePacksLittleEndian(t *testing.T) {
	raw := Float32ToPCM16([]float32{0.5})

	if raw[0] != 0x00 || raw[1] != 0x40 {
		t.Fatalf("expected 0x4000 packed little-endian, got %#v", raw)
	}
}

func TestDecodeMalformedBase64ReturnsDecodeError(t *testing.T) {
	_, err := Decode(WireAudioFrame{Data: "not base64!!", MimeType: "audio/pcm;rate=24000"})

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decodeErr.MimeType != "audio/pcm;rate=24000" {
		t.Fatalf("expected mime type to be kept on error, got %q", decodeErr.MimeType)
	}
}

func TestSampleRateFromMime(t *testing.T) {
	testCases := []struct {
		mime   string
		rate   int
		parsed bool
	}{
		{mime: "audio/pcm;rate=24000", rate: 24000, parsed: true},
		{mime: "audio/pcm; rate=16000", rate: 16000, parsed: true},
		{mime: "audio/pcm", parsed: false},
		{mime: "audio/pcm;rate=abc", parsed: false},
	}

	for _, testCase := range testCases {
		rate, ok := SampleRateFromMime(testCase.mime)
		if ok != testCase.parsed || rate != testCase.rate {
			t.Fatalf("%q: expected (%d, %t), got (%d, %t)", testCase.mime, testCase.rate, testCase.parsed, rate, ok)
		}
	}
}

func TestDurationIsExactForWholeMilliseconds(t *testing.T) {
	if got := Duration(480, PlaybackSampleRate); got != 20*time.Millisecond {
		t.Fatalf("expected 20ms, got %v", got)
	}
}

func TestFramesInvertsDuration(t *testing.T) {
	if got := Frames(50*time.Millisecond, PlaybackSampleRate); got != 1200 {
		t.Fatalf("expected 1200 frames, got %d", got)
	}
	if got := Frames(Duration(1000, PlaybackSampleRate), PlaybackSampleRate); got != 999 {
		t.Fatalf("expected truncated duration to lose a frame, got %d", got)
	}
	if got := Frames(-time.Second, PlaybackSampleRate); got != 0 {
		t.Fatalf("expected 0 frames for a negative duration, got %d", got)
	}
}
