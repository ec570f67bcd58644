package librarycache

import "errors"

// Sentinel errors for the library cache service.
var (
	// ErrInvalidParams is returned when a query cannot be fingerprinted.
	// This indicates a caller bug and propagates to the caller.
	ErrInvalidParams = errors.New("librarycache: invalid query parameters")

	// ErrBackendUnavailable marks cache backend failures. It is absorbed
	// by the service (reads degrade to pass-through) and surfaces only
	// through Health and logs.
	ErrBackendUnavailable = errors.New("librarycache: cache backend unavailable")
)
