package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const pcmMimePrefix = "audio/pcm;rate="

// WireAudioFrame is the unit of audio exchanged with the remote endpoint:
// base64 wrapped 16-bit little-endian mono PCM.
type WireAudioFrame struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// DecodeError is returned when a wire frame does not carry valid base64.
type DecodeError struct {
	MimeType string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %q audio frame: %v", e.MimeType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode converts samples in [-1, 1] into a wire frame. Values outside the
// range are clamped.
func Encode(samples []float32, sampleRate int) WireAudioFrame {
	return WireAudioFrame{
		Data:     base64.StdEncoding.EncodeToString(Float32ToPCM16(samples)),
		MimeType: pcmMimePrefix + strconv.Itoa(sampleRate),
	}
}

// Decode is the inverse of Encode. A trailing odd byte is ignored.
func Decode(frame WireAudioFrame) ([]float32, error) {
	raw, err := DecodeBytes(frame)
	if err != nil {
		return nil, err
	}

	return PCM16ToFloat32(raw), nil
}

// DecodeBytes returns the raw linear16 payload of a frame.
func DecodeBytes(frame WireAudioFrame) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(frame.Data)
	if err != nil {
		return nil, &DecodeError{MimeType: frame.MimeType, Err: err}
	}
	return raw, nil
}

// FromPCM16 wraps raw linear16 bytes as a wire frame.
func FromPCM16(pcm []byte, sampleRate int) WireAudioFrame {
	return WireAudioFrame{
		Data:     base64.StdEncoding.EncodeToString(pcm),
		MimeType: pcmMimePrefix + strconv.Itoa(sampleRate),
	}
}

// Float32ToPCM16 packs samples as int16 little-endian.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sampleToInt16(sample)))
	}
	return out
}

// PCM16ToFloat32 unpacks int16 little-endian samples into [-1, 1).
func PCM16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out
}

func sampleToInt16(sample float32) int16 {
	if sample != sample { // NaN
		return 0
	}
	scaled := math.Trunc(float64(sample) * 32768)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// SampleRateFromMime extracts the rate parameter of a pcm mime type.
func SampleRateFromMime(mimeType string) (int, bool) {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found || !strings.EqualFold(key, "rate") {
			continue
		}
		rate, err := strconv.Atoi(value)
		if err != nil || rate <= 0 {
			return 0, false
		}
		return rate, true
	}
	return 0, false
}

// Duration returns the exact playback length of frames at sampleRate.
func Duration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

// Frames returns the number of whole frames that fit in d at sampleRate.
func Frames(d time.Duration, sampleRate int) int64 {
	if sampleRate <= 0 || d <= 0 {
		return 0
	}
	return int64(d) * int64(sampleRate) / int64(time.Second)
}
