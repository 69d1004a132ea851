package audio

import "errors"

// ErrPermissionDenied marks microphone-access failures. Device clients wrap
// their platform error with this sentinel so callers can distinguish "user
// said no" from transient device trouble.
var ErrPermissionDenied = errors.New("microphone permission denied")
