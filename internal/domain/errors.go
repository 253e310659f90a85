package domain

import "errors"

var (
	// ErrNotFound is returned when a folder, file or token does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied is returned when the caller does not own the entity.
	ErrAccessDenied = errors.New("access denied")
	// ErrConflict is returned when other records still depend on the entity.
	ErrConflict = errors.New("conflict")
	// ErrUpstreamUnavailable wraps every failure of the remote object store.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrValidation          = errors.New("validation error")
	ErrPartialBatchFailure = errors.New("partial batch failure")
	ErrRateLimited         = errors.New("rate limited")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)
