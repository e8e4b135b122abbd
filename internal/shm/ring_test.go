package shm

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gyangu/data-portal-sub002/internal/wire"
)

// heapRegion builds a region over ordinary heap memory. The ring algorithm
// only sees a byte slice, so single-process tests do not need a real mapping.
func heapRegion(size int) *Region {
	return &Region{name: "heap", size: size, mem: make([]byte, size)}
}

func newTestRing(t *testing.T, dataCapacity int) *Ring {
	t.Helper()
	ring, err := InitRing(heapRegion(RingHeaderSize+dataCapacity), 0)
	require.NoError(t, err)
	return ring
}

func TestRingWriteReadRoundTrip(t *testing.T) {
	ring := newTestRing(t, 4096)

	payload := []byte(`{"a":1,"b":"x"}`)
	require.NoError(t, ring.TryWrite(wire.EncodeMessage(wire.MessageData, payload, 1)))

	hdr, got, err := ring.TryRead()
	require.NoError(t, err)
	assert.Equal(t, wire.MessageData, hdr.Type)
	assert.Equal(t, uint64(1), hdr.Sequence)
	assert.Equal(t, payload, got)
	assert.Zero(t, ring.Available())
}

func TestRingReadEmpty(t *testing.T) {
	ring := newTestRing(t, 256)
	_, _, err := ring.TryRead()
	assert.ErrorIs(t, err, ErrBufferEmpty)
}

func TestRingFIFOOrdering(t *testing.T) {
	ring := newTestRing(t, 8192)

	for seq := uint64(1); seq <= 20; seq++ {
		msg := wire.EncodeMessage(wire.MessageData, []byte(fmt.Sprintf("message-%d", seq)), seq)
		require.NoError(t, ring.TryWrite(msg))
	}
	for seq := uint64(1); seq <= 20; seq++ {
		hdr, payload, err := ring.TryRead()
		require.NoError(t, err)
		assert.Equal(t, seq, hdr.Sequence)
		assert.Equal(t, fmt.Sprintf("message-%d", seq), string(payload))
	}
}

func TestRingWrapAround(t *testing.T) {
	// Capacity chosen so cumulative writes repeatedly cross the boundary.
	ring := newTestRing(t, 200)

	payload := bytes.Repeat([]byte{0xAB}, 64) // 96 bytes framed
	for seq := uint64(1); seq <= 50; seq++ {
		p := append([]byte{byte(seq)}, payload...)
		require.NoError(t, ring.TryWrite(wire.EncodeMessage(wire.MessageData, p, seq)))

		hdr, got, err := ring.TryRead()
		require.NoError(t, err)
		assert.Equal(t, seq, hdr.Sequence)
		assert.Equal(t, p, got)
		assert.LessOrEqual(t, ring.Available(), ring.Capacity())
	}
}

func TestRingBufferFullLeavesStateUntouched(t *testing.T) {
	ring := newTestRing(t, 128)

	small := wire.EncodeMessage(wire.MessageData, bytes.Repeat([]byte{1}, 32), 1) // 64 bytes
	require.NoError(t, ring.TryWrite(small))

	wposBefore := ring.hdr.WritePos()
	availBefore := ring.hdr.Available()

	big := wire.EncodeMessage(wire.MessageData, bytes.Repeat([]byte{2}, 64), 2) // 96 bytes, 64 free
	err := ring.TryWrite(big)
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, wposBefore, ring.hdr.WritePos())
	assert.Equal(t, availBefore, ring.hdr.Available())

	// Draining makes room for the rejected message.
	_, _, err = ring.TryRead()
	require.NoError(t, err)
	require.NoError(t, ring.TryWrite(big))
}

func TestRingCapacityInvariant(t *testing.T) {
	ring := newTestRing(t, 256)

	check := func() {
		avail := ring.Available()
		assert.LessOrEqual(t, avail, ring.Capacity())
	}

	msg := func(seq uint64) []byte {
		return wire.EncodeMessage(wire.MessageData, bytes.Repeat([]byte{byte(seq)}, 32), seq)
	}

	seq := uint64(0)
	for round := 0; round < 100; round++ {
		seq++
		if err := ring.TryWrite(msg(seq)); err != nil {
			require.ErrorIs(t, err, ErrBufferFull)
		}
		check()
		if round%3 == 0 {
			if _, _, err := ring.TryRead(); err != nil {
				require.ErrorIs(t, err, ErrBufferEmpty)
			}
			check()
		}
	}
}

func TestRingMessageLargerThanCapacity(t *testing.T) {
	ring := newTestRing(t, 64)
	msg := wire.EncodeMessage(wire.MessageData, bytes.Repeat([]byte{1}, 128), 1)
	assert.ErrorIs(t, ring.TryWrite(msg), wire.ErrMessageTooLarge)
}

func TestRingIncompleteMessageNotConsumed(t *testing.T) {
	ring := newTestRing(t, 256)

	// Simulate a writer that has published the header but not the payload
	// yet: only the header's 32 bytes are accounted as available.
	hdr := wire.NewHeader(wire.MessageData, bytes.Repeat([]byte{7}, 100), 1)
	ring.copyIn(0, hdr.Marshal())
	ring.hdr.addAvailable(wire.HeaderSize)

	_, _, err := ring.TryRead()
	assert.ErrorIs(t, err, ErrBufferEmpty)
	assert.Equal(t, uint64(0), ring.hdr.ReadPos())
}

func TestRingDetectsCorruption(t *testing.T) {
	region := heapRegion(RingHeaderSize + 512)
	ring, err := InitRing(region, 0)
	require.NoError(t, err)

	payload := []byte("precious payload bytes")
	require.NoError(t, ring.TryWrite(wire.EncodeMessage(wire.MessageData, payload, 1)))

	// Flip one payload byte directly in the backing memory.
	region.mem[RingHeaderSize+wire.HeaderSize] ^= 0xFF

	_, _, err = ring.TryRead()
	assert.ErrorIs(t, err, wire.ErrDataCorruption)
}

func TestAttachRingValidatesHeader(t *testing.T) {
	region := heapRegion(RingHeaderSize + 256)
	_, err := InitRing(region, 0)
	require.NoError(t, err)

	_, err = AttachRing(region, 0)
	require.NoError(t, err)

	// A capacity that disagrees with the mapped size is rejected.
	ring := attach(region, 0)
	ring.hdr.setCapacity(9999)
	_, err = AttachRing(region, 0)
	assert.ErrorIs(t, err, wire.ErrProtocol)
}

func TestAttachRingWaitsForCreator(t *testing.T) {
	// A second process can open a freshly created region before its creator
	// has installed the ring header. The attacher must wait out that window
	// instead of rejecting the zero-filled header.
	region := heapRegion(RingHeaderSize + 256)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = InitRing(region, 0)
	}()

	ring, err := AttachRing(region, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), ring.Capacity())
}

func TestAttachRingGivesUpOnUnpublishedHeader(t *testing.T) {
	// Never-initialized region: all-zero header must surface as a protocol
	// error once the wait expires, not hang.
	region := heapRegion(RingHeaderSize + 256)

	_, err := AttachRing(region, 0)
	assert.ErrorIs(t, err, wire.ErrProtocol)
}

func TestRingRegionTooSmall(t *testing.T) {
	_, err := InitRing(heapRegion(RingHeaderSize), 0)
	assert.ErrorIs(t, err, wire.ErrProtocol)
}
