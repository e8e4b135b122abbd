package transport

import "errors"

// Sentinel errors surfaced to callers.
var (
	ErrTimeout               = errors.New("operation timed out")
	ErrTransportNotAvailable = errors.New("transport not available")
	ErrNodeNotFound          = errors.New("node not found")
	ErrNodeUnreachable       = errors.New("node has no endpoint and no shared memory name")
)
