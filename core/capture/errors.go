package capture

import "fmt"

// PermissionError is returned when the capture device cannot be acquired,
// usually because microphone access was denied.
type PermissionError struct {
	Device string
	Err    error
}

func (e *PermissionError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("microphone access denied: %v", e.Err)
	}
	return fmt.Sprintf("microphone access denied for %s: %v", e.Device, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }
