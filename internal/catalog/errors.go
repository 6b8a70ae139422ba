package catalog

import "errors"

// Catalog errors.
var (
	ErrPriorityNotFound = errors.New("priority not found")
	ErrStatusNotFound   = errors.New("status not found")
	ErrEmptyCatalog     = errors.New("catalog must contain at least one priority and one status")
	ErrDuplicateID      = errors.New("duplicate catalog id")
)
