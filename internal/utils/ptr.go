package utils

func Ptr[T any](v T) *T { return &v }

// Clamp bounds v to [lo, hi].
func Clamp[T ~int | ~int64 | ~float32 | ~float64](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
