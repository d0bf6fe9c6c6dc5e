package audio

import "math"

// RMS returns the root mean square level of samples, bounded to [0, 1].
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}
	return math.Min(1, math.Sqrt(sum/float64(len(samples))))
}

// Framer re-chunks a stream of samples into fixed size blocks.
//
// Framer is not safe for concurrent use.
type Framer struct {
	size    int
	pending []float32
}

func NewFramer(size int) *Framer {
	if size <= 0 {
		size = DefaultBlockSize
	}
	return &Framer{size: size, pending: make([]float32, 0, size)}
}

func (f *Framer) Size() int { return f.size }

// Write appends samples and calls onBlock for every complete block. The
// block slice is owned by the callee.
func (f *Framer) Write(samples []float32, onBlock func(block []float32)) {
	for len(samples) > 0 {
		n := min(f.size-len(f.pending), len(samples))
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]

		if len(f.pending) == f.size {
			block := f.pending
			f.pending = make([]float32, 0, f.size)
			onBlock(block)
		}
	}
}

// Reset drops any partially filled block.
func (f *Framer) Reset() {
	f.pending = f.pending[:0]
}

// Resample converts samples between rates with linear interpolation.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}

	n := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	out := make([]float32, n)
	step := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
