package session

import "errors"

// Session errors.
var (
	ErrNoActiveIncident = errors.New("no active incident")
	ErrNotConfirmed     = errors.New("operation not confirmed")
	ErrUpdateNotFound   = errors.New("update not found")
	ErrNoEditInProgress = errors.New("no update is being edited")
)
