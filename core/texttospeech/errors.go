package texttospeech

import (
	"errors"
	"fmt"
)

// ErrUnsupportedLanguage signals that synthesis was skipped because the
// requested language is outside SupportedLanguages. The text response is
// still shown; no audio is produced.
var ErrUnsupportedLanguage = errors.New("language unsupported for speech")

// ErrDeviceFallback is returned by the cloud provider when the backend
// directs the client to synthesize on device instead.
var ErrDeviceFallback = errors.New("backend requested on-device synthesis")

// RequestError reports a failed synthesis request. StatusCode is zero for
// transport-level failures.
type RequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Transient reports whether the failure is network-class and worth a single
// retry against the same provider.
func (e *RequestError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}
