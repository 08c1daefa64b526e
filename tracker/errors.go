package tracker

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is returned by stores that have been closed or never opened.
var ErrStoreUnavailable = errors.New("tracking store unavailable")

// TrackingError wraps a failure of the underlying store. The Tracker logs these
// and carries on.
type TrackingError struct {
	Op          string
	Fingerprint string
	Err         error
}

func (e *TrackingError) Error() string {
	if e.Fingerprint != "" {
		return fmt.Sprintf("tracking %s failed for %s: %v", e.Op, e.Fingerprint, e.Err)
	}
	return fmt.Sprintf("tracking %s failed: %v", e.Op, e.Err)
}

func (e *TrackingError) Unwrap() error {
	return e.Err
}
