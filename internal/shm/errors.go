package shm

import "errors"

// Sentinel errors for region lifecycle and ring operations.
var (
	ErrRegionNotFound       = errors.New("shared memory region not found")
	ErrRegionCreationFailed = errors.New("shared memory region creation failed")
	ErrMappingFailed        = errors.New("shared memory mapping failed")
	ErrPermissionDenied     = errors.New("shared memory permission denied")
	ErrPlatformUnsupported  = errors.New("platform does not support shared memory")

	// ErrBufferFull and ErrBufferEmpty are recoverable: callers retry until
	// their deadline expires, at which point they surface as a timeout.
	ErrBufferFull  = errors.New("ring buffer full")
	ErrBufferEmpty = errors.New("ring buffer empty")
)
