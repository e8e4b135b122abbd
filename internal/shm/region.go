// Package shm provides named shared-memory regions backed by OS-level mapped
// files and a single-producer single-consumer ring buffer layered on top of
// them. A region is the physical rendezvous point between two processes: both
// sides map the same file and observe the same bytes.
package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Gyangu/data-portal-sub002/internal/wire"
)

const (
	// MaxRegionNameLen bounds region names; names act as cross-process keys.
	MaxRegionNameLen = 255

	// MinRegionSize and MaxRegionSize bound region sizes (1 byte to 1 GiB).
	MinRegionSize = 1
	MaxRegionSize = 1 << 30

	// regionPrefix namespaces portal region files under /dev/shm or the
	// temporary directory.
	regionPrefix = "portal_shm_"
)

// Region is an opened or created shared-memory mapping. The creator unlinks
// the backing object on Close; an opener only unmaps, so one process exiting
// never invalidates another's view.
type Region struct {
	name    string
	size    int
	mem     []byte
	file    *os.File
	path    string
	creator bool
}

// Name returns the region's rendezvous name.
func (r *Region) Name() string { return r.name }

// Size returns the mapped size in bytes.
func (r *Region) Size() int { return r.size }

// IsCreator reports whether this process created the backing object.
func (r *Region) IsCreator() bool { return r.creator }

// Bytes exposes the raw mapping. The ring buffer owns the layout; direct
// access is for diagnostics and tests.
func (r *Region) Bytes() []byte { return r.mem }

// ValidateName enforces the cross-implementation naming rules: ASCII
// alphanumerics plus '-' and '_', 1-255 characters.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > MaxRegionNameLen {
		return fmt.Errorf("%w: region name length %d (want 1-%d)", wire.ErrProtocol, len(name), MaxRegionNameLen)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return fmt.Errorf("%w: region name %q contains invalid byte %q", wire.ErrProtocol, name, c)
		}
	}
	return nil
}

// ValidateSize enforces the 1 byte to 1 GiB size bounds.
func ValidateSize(size int) error {
	if size < MinRegionSize || size > MaxRegionSize {
		return fmt.Errorf("%w: region size %d out of range [%d, %d]", wire.ErrProtocol, size, MinRegionSize, MaxRegionSize)
	}
	return nil
}

// ReadAt copies length bytes starting at offset out of the mapping.
// Out-of-range requests are protocol errors.
func (r *Region) ReadAt(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > r.size {
		return nil, fmt.Errorf("%w: read [%d, %d) outside region of %d bytes", wire.ErrProtocol, offset, offset+length, r.size)
	}
	out := make([]byte, length)
	copy(out, r.mem[offset:offset+length])
	return out, nil
}

// WriteAt copies data into the mapping at offset, bounds-checked.
func (r *Region) WriteAt(data []byte, offset int) error {
	if offset < 0 || offset+len(data) > r.size {
		return fmt.Errorf("%w: write [%d, %d) outside region of %d bytes", wire.ErrProtocol, offset, offset+len(data), r.size)
	}
	copy(r.mem[offset:], data)
	return nil
}

// regionPath resolves the backing file path for a region name. /dev/shm is
// preferred where present so the mapping stays in memory.
func regionPath(name string) string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", regionPrefix+name)
	}
	return filepath.Join(os.TempDir(), regionPrefix+name)
}

// Exists reports whether a region's backing object is present on this host.
func Exists(name string) bool {
	_, err := os.Stat(regionPath(name))
	return err == nil
}

// Remove unlinks a region's backing object regardless of creator, for
// cleaning up after crashed processes.
func Remove(name string) error {
	err := os.Remove(regionPath(name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, name)
	}
	return err
}

// ListNames returns the names of all portal regions present on this host.
func ListNames() ([]string, error) {
	dir := filepath.Dir(regionPath("probe"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && len(e.Name()) > len(regionPrefix) && e.Name()[:len(regionPrefix)] == regionPrefix {
			names = append(names, e.Name()[len(regionPrefix):])
		}
	}
	return names, nil
}

// RegionInfo describes a region's on-disk backing object.
type RegionInfo struct {
	Name     string
	Path     string
	Size     int64
	Modified time.Time
}

// List returns info for all portal regions present on this host.
func List() ([]RegionInfo, error) {
	names, err := ListNames()
	if err != nil {
		return nil, err
	}
	infos := make([]RegionInfo, 0, len(names))
	for _, name := range names {
		path := regionPath(name)
		st, err := os.Stat(path)
		if err != nil {
			// Region removed between listing and stat.
			continue
		}
		infos = append(infos, RegionInfo{
			Name:     name,
			Path:     path,
			Size:     st.Size(),
			Modified: st.ModTime(),
		})
	}
	return infos, nil
}
