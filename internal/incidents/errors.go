package incidents

import "errors"

// Repository errors.
var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrEmptyIncidentID  = errors.New("incident id is empty")
)
