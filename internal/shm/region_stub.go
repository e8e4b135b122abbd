//go:build !unix

package shm

// Create is unavailable on platforms without a shared-memory mapping
// primitive this package knows how to drive.
func Create(name string, size int) (*Region, error) {
	return nil, ErrPlatformUnsupported
}

// Open is unavailable on platforms without shared-memory support.
func Open(name string) (*Region, error) {
	return nil, ErrPlatformUnsupported
}

// Close is a no-op on unsupported platforms; regions cannot be created.
func (r *Region) Close() error {
	return ErrPlatformUnsupported
}
