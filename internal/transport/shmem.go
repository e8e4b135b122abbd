// Package transport implements the portal's transport mechanisms and the
// strategy selection that dispatches each call to one of them. The shared
// memory transport is the only fully implemented mechanism; the network
// transports exist at their interface boundary only.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Gyangu/data-portal-sub002/internal/metrics"
	"github.com/Gyangu/data-portal-sub002/internal/shm"
	"github.com/Gyangu/data-portal-sub002/internal/wire"
)

// Shared-memory transport defaults.
const (
	// DefaultRegionSize is used when GetOrCreateRegion is asked for size 0.
	DefaultRegionSize = 1 << 20

	// DefaultPollInterval is the sleep between ring-buffer attempts. The
	// busy-poll trades CPU for simplicity; timeouts are wall-clock deadlines
	// checked before each retry.
	DefaultPollInterval = time.Millisecond
)

// ShmConfig configures a shared-memory transport instance.
type ShmConfig struct {
	MaxMessageSize uint32
	RegionSize     int
	PollInterval   time.Duration
}

func (c *ShmConfig) applyDefaults() {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = wire.DefaultMaxMessageSize
	}
	if c.RegionSize == 0 {
		c.RegionSize = DefaultRegionSize
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// channel is one named region plus the per-direction bookkeeping this
// process keeps for it. A region is strictly unidirectional: this process is
// either the writer or the reader for a given region, never both, except in
// loopback tests where both cursors live in the same process anyway.
type channel struct {
	mu          sync.Mutex
	region      *shm.Region
	ring        *shm.Ring
	sendSeq     uint64
	lastRecvSeq uint64
}

// SharedMemoryTransport owns a table of named regions, each carrying one
// ring buffer. The table is exclusive to this instance; the regions
// themselves are the cross-process sharing point.
type SharedMemoryTransport struct {
	cfg ShmConfig

	mu       sync.Mutex
	channels map[string]*channel
}

// NewSharedMemoryTransport creates a transport with an empty region table.
func NewSharedMemoryTransport(cfg ShmConfig) *SharedMemoryTransport {
	cfg.applyDefaults()
	return &SharedMemoryTransport{
		cfg:      cfg,
		channels: make(map[string]*channel),
	}
}

// GetOrCreateRegion opens an existing region under that name, or creates it
// when absent. Returns true only when the region was newly created.
// Idempotent: a second call for a known name is a no-op returning false.
func (t *SharedMemoryTransport) GetOrCreateRegion(name string, size int) (bool, error) {
	if err := shm.ValidateName(name); err != nil {
		return false, err
	}
	if size == 0 {
		size = t.cfg.RegionSize
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.channels[name]; ok {
		return false, nil
	}

	region, err := shm.Open(name)
	created := false
	if errors.Is(err, shm.ErrRegionNotFound) {
		region, err = shm.Create(name, size)
		created = err == nil
		// Another process may have won the creation race; fall back to open.
		if errors.Is(err, shm.ErrRegionCreationFailed) {
			region, err = shm.Open(name)
			created = false
		}
	}
	if err != nil {
		return false, err
	}

	var ring *shm.Ring
	if created {
		ring, err = shm.InitRing(region, t.cfg.MaxMessageSize)
	} else {
		ring, err = shm.AttachRing(region, t.cfg.MaxMessageSize)
	}
	if err != nil {
		region.Close()
		return false, err
	}

	t.channels[name] = &channel{region: region, ring: ring}
	metrics.RegionsActive.Inc()
	slog.Debug("shared memory region ready", "region", name, "size", region.Size(), "created", created)
	return created, nil
}

func (t *SharedMemoryTransport) channelFor(name string) (*channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shm.ErrRegionNotFound, name)
	}
	return ch, nil
}

// Send frames payload as a Data message and writes it to the region's ring,
// retrying on a full buffer until timeout. The write is all-or-nothing: a
// failed send never partially appears in the ring. Outcome recording is the
// facade's job so each physical operation is counted exactly once.
func (t *SharedMemoryTransport) Send(payload []byte, toRegion string, timeout time.Duration) error {
	return t.sendMessage(wire.MessageData, payload, toRegion, timeout)
}

// SendHeartbeat writes an empty Heartbeat message, used for liveness probes.
func (t *SharedMemoryTransport) SendHeartbeat(toRegion string, timeout time.Duration) error {
	return t.sendMessage(wire.MessageHeartbeat, nil, toRegion, timeout)
}

func (t *SharedMemoryTransport) sendMessage(msgType uint8, payload []byte, toRegion string, timeout time.Duration) error {
	if uint32(len(payload)) > t.cfg.MaxMessageSize {
		return fmt.Errorf("%w: payload %d bytes exceeds limit %d", wire.ErrMessageTooLarge, len(payload), t.cfg.MaxMessageSize)
	}
	ch, err := t.channelFor(toRegion)
	if err != nil {
		return err
	}

	ch.mu.Lock()
	ch.sendSeq++
	seq := ch.sendSeq
	ch.mu.Unlock()

	msg := wire.EncodeMessage(msgType, payload, seq)
	deadline := time.Now().Add(timeout)
	for {
		ch.mu.Lock()
		err := ch.ring.TryWrite(msg)
		ch.mu.Unlock()
		if err == nil {
			return nil
		}
		if !errors.Is(err, shm.ErrBufferFull) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: ring full on region %q for %v", ErrTimeout, toRegion, timeout)
		}
		metrics.RetriesTotal.WithLabelValues("send").Inc()
		time.Sleep(t.cfg.PollInterval)
	}
}

// Receive polls the region's ring for the next Data message until timeout.
// Heartbeats are consumed and dropped. A failed receive never partially
// consumes a message.
func (t *SharedMemoryTransport) Receive(fromRegion string, timeout time.Duration) ([]byte, error) {
	ch, err := t.channelFor(fromRegion)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		ch.mu.Lock()
		hdr, payload, err := ch.ring.TryRead()
		if err == nil {
			t.observeSequence(ch, fromRegion, hdr.Sequence)
		}
		ch.mu.Unlock()

		switch {
		case err == nil:
			if hdr.Type == wire.MessageHeartbeat {
				continue
			}
			return payload, nil
		case errors.Is(err, shm.ErrBufferEmpty):
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("%w: no message on region %q for %v", ErrTimeout, fromRegion, timeout)
			}
			metrics.RetriesTotal.WithLabelValues("receive").Inc()
			time.Sleep(t.cfg.PollInterval)
		default:
			// Protocol violations and corruption are never retried.
			return nil, err
		}
	}
}

// observeSequence tracks the sender's strictly increasing sequence and logs
// gaps, which indicate message loss on the peer side. Caller holds ch.mu.
func (t *SharedMemoryTransport) observeSequence(ch *channel, region string, seq uint64) {
	if ch.lastRecvSeq != 0 && seq != ch.lastRecvSeq+1 {
		slog.Warn("sequence gap on region",
			"region", region, "expected", ch.lastRecvSeq+1, "got", seq)
	}
	ch.lastRecvSeq = seq
}

// ListRegions returns the names in this transport's region table.
func (t *SharedMemoryTransport) ListRegions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.channels))
	for name := range t.channels {
		names = append(names, name)
	}
	return names
}

// IsRegionAvailable reports whether the named region is in this transport's
// table.
func (t *SharedMemoryTransport) IsRegionAvailable(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.channels[name]
	return ok
}

// RemoveRegion releases a region: unmapped always, destroyed only if this
// transport created it.
func (t *SharedMemoryTransport) RemoveRegion(name string) error {
	t.mu.Lock()
	ch, ok := t.channels[name]
	delete(t.channels, name)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", shm.ErrRegionNotFound, name)
	}
	metrics.RegionsActive.Dec()
	return ch.region.Close()
}

// Close releases every region in the table.
func (t *SharedMemoryTransport) Close() error {
	t.mu.Lock()
	channels := t.channels
	t.channels = make(map[string]*channel)
	t.mu.Unlock()

	var firstErr error
	for name, ch := range channels {
		metrics.RegionsActive.Dec()
		if err := ch.region.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close region %q: %w", name, err)
		}
	}
	return firstErr
}
