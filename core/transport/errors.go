package transport

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gorilla/websocket"
)

var (
	ErrTransientNetwork = errors.New("transient network error")
	ErrFatalAuth        = errors.New("authentication rejected")
	ErrFatalConfig      = errors.New("session configuration rejected")
	ErrProtocol         = errors.New("protocol error")

	ErrClosed    = errors.New("transport is closed")
	ErrQueueFull = errors.New("outbound queue is full")
)

type classifiedError struct {
	kind error
	err  error
}

func (e *classifiedError) Error() string   { return e.err.Error() }
func (e *classifiedError) Unwrap() []error { return []error{e.kind, e.err} }

var (
	authStatus    = regexp.MustCompile(`\b(401|403)\b`)
	authMarkers   = []string{"unauthorized", "unauthenticated", "permission denied", "api key", "forbidden"}
	configStatus  = regexp.MustCompile(`\b400\b`)
	configMarkers = []string{"invalid argument", "not found", "unsupported"}
)

// ClassifyError tags err with ErrFatalAuth, ErrFatalConfig or
// ErrTransientNetwork. Errors already carrying one of the package sentinels
// are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrTransientNetwork, ErrFatalAuth, ErrFatalConfig, ErrProtocol} {
		if errors.Is(err, kind) {
			return err
		}
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.ClosePolicyViolation:
			return &classifiedError{kind: ErrFatalAuth, err: err}
		case websocket.CloseInvalidFramePayloadData:
			return &classifiedError{kind: ErrFatalConfig, err: err}
		}
	}

	text := strings.ToLower(err.Error())
	if closeErr != nil {
		text = strings.ToLower(closeErr.Text)
	}
	if authStatus.MatchString(text) {
		return &classifiedError{kind: ErrFatalAuth, err: err}
	}
	for _, marker := range authMarkers {
		if strings.Contains(text, marker) {
			return &classifiedError{kind: ErrFatalAuth, err: err}
		}
	}
	if configStatus.MatchString(text) {
		return &classifiedError{kind: ErrFatalConfig, err: err}
	}
	for _, marker := range configMarkers {
		if strings.Contains(text, marker) {
			return &classifiedError{kind: ErrFatalConfig, err: err}
		}
	}
	return &classifiedError{kind: ErrTransientNetwork, err: err}
}

// IsFatal reports whether err ends the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalAuth) || errors.Is(err, ErrFatalConfig)
}

type ConnectionError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
