package shm

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/Gyangu/data-portal-sub002/internal/wire"
)

// RingHeaderSize is the reserved space at the start of a region's mapping
// (64-byte aligned). The data area follows immediately.
const RingHeaderSize = 64

// ringHeader lives at offset 0 of the shared mapping. All fields are mutated
// with hardware atomics so two independent OS processes observe consistent
// state; no process-local lock protects them.
//
// Invariants: 0 <= availableBytes <= capacity; writePos and readPos are
// always < capacity. Exactly one process writes and one reads a given ring;
// a full-duplex channel uses two rings in two regions.
type ringHeader struct {
	capacity   uint64   // 0x00: data area capacity in bytes, fixed at creation
	writePos   uint64   // 0x08: next write offset, modulo capacity
	readPos    uint64   // 0x10: next read offset, modulo capacity
	availBytes uint64   // 0x18: bytes currently readable
	reserved   [32]byte // 0x20-0x3F: padding to 64 bytes
}

func (h *ringHeader) Capacity() uint64      { return atomic.LoadUint64(&h.capacity) }
func (h *ringHeader) WritePos() uint64      { return atomic.LoadUint64(&h.writePos) }
func (h *ringHeader) ReadPos() uint64       { return atomic.LoadUint64(&h.readPos) }
func (h *ringHeader) Available() uint64     { return atomic.LoadUint64(&h.availBytes) }
func (h *ringHeader) setCapacity(v uint64)  { atomic.StoreUint64(&h.capacity, v) }
func (h *ringHeader) setWritePos(v uint64)  { atomic.StoreUint64(&h.writePos, v) }
func (h *ringHeader) setReadPos(v uint64)   { atomic.StoreUint64(&h.readPos, v) }
func (h *ringHeader) addAvailable(d uint64) { atomic.AddUint64(&h.availBytes, d) }
func (h *ringHeader) subAvailable(d uint64) { atomic.AddUint64(&h.availBytes, ^(d - 1)) }

// Ring is a single-producer single-consumer circular byte buffer over a
// region's data area. Writes and reads are message-granular and
// all-or-nothing: TryWrite either places the full framed message or leaves
// the ring untouched, and TryRead either consumes a full message or nothing.
type Ring struct {
	region *Region
	hdr    *ringHeader
	data   []byte
	maxMsg uint32
}

// A creator that has mapped a region but not yet published its header leaves
// capacity at zero (the backing file starts zero-filled). AttachRing waits
// this long for the publish before declaring the header invalid.
const (
	attachRetryInterval = time.Millisecond
	attachWaitMax       = 250 * time.Millisecond
)

// InitRing installs a fresh ring header into a newly created region and
// returns the attached ring. The region must be at least RingHeaderSize+1
// bytes. Capacity is stored last: a non-zero capacity is the publish signal
// attachers wait for, so they never observe a half-written header.
func InitRing(region *Region, maxMessageSize uint32) (*Ring, error) {
	if region.Size() <= RingHeaderSize {
		return nil, fmt.Errorf("%w: region %q too small for ring header (%d bytes)", wire.ErrProtocol, region.Name(), region.Size())
	}
	r := attach(region, maxMessageSize)
	r.hdr.setWritePos(0)
	r.hdr.setReadPos(0)
	atomic.StoreUint64(&r.hdr.availBytes, 0)
	r.hdr.setCapacity(uint64(region.Size() - RingHeaderSize))
	return r, nil
}

// AttachRing attaches to a ring previously initialized by another process,
// validating the header against the mapped size. A zero capacity means the
// creator has not finished initializing yet; that is retried briefly before
// failing, covering the window between region creation and header install.
func AttachRing(region *Region, maxMessageSize uint32) (*Ring, error) {
	if region.Size() <= RingHeaderSize {
		return nil, fmt.Errorf("%w: region %q too small for ring header (%d bytes)", wire.ErrProtocol, region.Name(), region.Size())
	}
	r := attach(region, maxMessageSize)
	capacity := r.hdr.Capacity()
	for deadline := time.Now().Add(attachWaitMax); capacity == 0 && time.Now().Before(deadline); {
		time.Sleep(attachRetryInterval)
		capacity = r.hdr.Capacity()
	}
	if capacity != uint64(region.Size()-RingHeaderSize) {
		return nil, fmt.Errorf("%w: ring capacity %d does not match region size %d", wire.ErrProtocol, capacity, region.Size())
	}
	if r.hdr.Available() > capacity || r.hdr.WritePos() >= capacity || r.hdr.ReadPos() >= capacity {
		return nil, fmt.Errorf("%w: corrupt ring header in region %q", wire.ErrProtocol, region.Name())
	}
	return r, nil
}

func attach(region *Region, maxMessageSize uint32) *Ring {
	mem := region.Bytes()
	return &Ring{
		region: region,
		hdr:    (*ringHeader)(unsafe.Pointer(&mem[0])),
		data:   mem[RingHeaderSize:],
		maxMsg: maxMessageSize,
	}
}

// Capacity returns the fixed data-area capacity in bytes.
func (r *Ring) Capacity() uint64 { return r.hdr.Capacity() }

// Available returns the bytes currently readable.
func (r *Ring) Available() uint64 { return r.hdr.Available() }

// TryWrite appends a framed message (header already included in msg) to the
// ring without blocking. Returns ErrBufferFull when the message does not fit
// in the free space; the ring is left unmodified in that case.
func (r *Ring) TryWrite(msg []byte) error {
	capacity := r.hdr.Capacity()
	total := uint64(len(msg))
	if total > capacity {
		return fmt.Errorf("%w: message %d bytes, ring capacity %d", wire.ErrMessageTooLarge, total, capacity)
	}
	if total > capacity-r.hdr.Available() {
		return ErrBufferFull
	}

	writePos := r.hdr.WritePos()
	r.copyIn(writePos, msg)

	// Publish order matters for the cross-process reader: the data copy must
	// be visible before availableBytes grows.
	r.hdr.setWritePos((writePos + total) % capacity)
	r.hdr.addAvailable(total)
	return nil
}

// TryRead consumes the next message without blocking. Returns ErrBufferEmpty
// when no complete message is present yet. Validation and checksum
// verification happen before the read position advances, so a malformed
// message surfaces immediately and is not silently consumed as garbage.
func (r *Ring) TryRead() (wire.Header, []byte, error) {
	avail := r.hdr.Available()
	if avail < wire.HeaderSize {
		return wire.Header{}, nil, ErrBufferEmpty
	}

	readPos := r.hdr.ReadPos()
	hdrBytes := make([]byte, wire.HeaderSize)
	r.copyOut(readPos, hdrBytes)

	hdr, err := wire.ParseHeader(hdrBytes)
	if err != nil {
		return wire.Header{}, nil, err
	}
	if err := hdr.Validate(r.maxMsg); err != nil {
		return wire.Header{}, nil, err
	}

	total := hdr.TotalSize()
	if avail < total {
		// Header is visible but the payload has not finished writing.
		return wire.Header{}, nil, ErrBufferEmpty
	}

	capacity := r.hdr.Capacity()
	payload := make([]byte, hdr.Size)
	r.copyOut((readPos+wire.HeaderSize)%capacity, payload)

	if err := hdr.VerifyChecksum(payload); err != nil {
		return wire.Header{}, nil, err
	}

	r.hdr.setReadPos((readPos + total) % capacity)
	r.hdr.subAvailable(total)
	return hdr, payload, nil
}

// copyIn writes b at pos, splitting into two copies when the write crosses
// the capacity boundary.
func (r *Ring) copyIn(pos uint64, b []byte) {
	capacity := r.hdr.Capacity()
	if pos+uint64(len(b)) <= capacity {
		copy(r.data[pos:], b)
		return
	}
	first := capacity - pos
	copy(r.data[pos:], b[:first])
	copy(r.data[:], b[first:])
}

// copyOut reads len(b) bytes starting at pos, wrap-around aware, without
// advancing the read position.
func (r *Ring) copyOut(pos uint64, b []byte) {
	capacity := r.hdr.Capacity()
	if pos+uint64(len(b)) <= capacity {
		copy(b, r.data[pos:])
		return
	}
	first := capacity - pos
	copy(b, r.data[pos:capacity])
	copy(b[first:], r.data[:uint64(len(b))-first])
}
