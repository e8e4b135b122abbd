//go:build unix

package shm

import (
	"fmt"
	"os"
	"syscall"
)

// Create allocates and maps a new region. The backing file is created
// exclusively: if a region of the same name already exists, creation fails
// and the caller should Open instead. The mapping is zero-initialized by the
// file truncation.
func Create(name string, size int) (*Region, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateSize(size); err != nil {
		return nil, err
	}

	path := regionPath(name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrRegionCreationFailed, path, err)
	}

	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: truncate %s to %d: %v", ErrRegionCreationFailed, path, size, err)
	}

	mem, err := mmapFile(file, size)
	if err != nil {
		cleanup()
		return nil, err
	}

	return &Region{
		name:    name,
		size:    size,
		mem:     mem,
		file:    file,
		path:    path,
		creator: true,
	}, nil
}

// Open maps an existing region by name.
func Open(name string) (*Region, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	path := regionPath(name)
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRegionNotFound, name)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrMappingFailed, path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrMappingFailed, path, err)
	}
	size := int(info.Size())
	if err := ValidateSize(size); err != nil {
		file.Close()
		return nil, err
	}

	mem, err := mmapFile(file, size)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Region{
		name: name,
		size: size,
		mem:  mem,
		file: file,
		path: path,
	}, nil
}

// Close unmaps the region and closes the backing file. The creator also
// unlinks the backing object so the name can be reused.
func (r *Region) Close() error {
	var firstErr error

	if r.mem != nil {
		if err := syscall.Munmap(r.mem); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: munmap: %v", ErrMappingFailed, err)
		}
		r.mem = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.file = nil
	}
	if r.creator {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func mmapFile(file *os.File, size int) ([]byte, error) {
	mem, err := syscall.Mmap(int(file.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", ErrMappingFailed, err)
	}
	return mem, nil
}
