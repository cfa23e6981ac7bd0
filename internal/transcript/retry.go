package transcript

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Reason codes reported by speech engines.
const (
	ReasonNetwork           = "network"
	ReasonServiceNotAllowed = "service-not-allowed"
	ReasonNotAllowed        = "not-allowed"
	ReasonAudioCapture      = "audio-capture"
	ReasonNoSpeech          = "no-speech"
	ReasonAborted           = "aborted"
)

var ErrPermissionDenied = errors.New("speech input permission denied")

// EngineError carries the reason code of an engine failure.
type EngineError struct {
	Reason string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("speech engine error: %s", e.Reason)
	}
	return fmt.Sprintf("speech engine error: %s: %v", e.Reason, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the reason code from err.
func ReasonOf(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Reason
	}
	if errors.Is(err, ErrPermissionDenied) {
		return ReasonNotAllowed
	}
	return ReasonNetwork
}

// IsPermission reports reasons that make speech input unavailable.
func IsPermission(reason string) bool {
	return reason == ReasonNotAllowed || reason == ReasonAudioCapture
}

// RetryPolicy bounds automatic restarts after recoverable engine errors.
type RetryPolicy struct {
	Attempts  int
	Delay     time.Duration
	Retryable []string
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  1,
		Delay:     time.Second,
		Retryable: []string{ReasonNetwork, ReasonServiceNotAllowed},
	}
}

// ShouldRetry reports whether attempt (zero-based) may restart after reason.
func (p RetryPolicy) ShouldRetry(reason string, attempt int) bool {
	return attempt < p.Attempts && slices.Contains(p.Retryable, reason)
}
