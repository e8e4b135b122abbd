// Package portal is the public entry point of the data portal: a
// cross-process, cross-language transport that exchanges structured messages
// over shared memory, with strategy selection informed by live performance
// telemetry. Application code talks only to this package; regions, rings and
// wire headers stay internal.
package portal

import (
	"sync"
	"time"

	"github.com/Gyangu/data-portal-sub002/internal/perf"
	"github.com/Gyangu/data-portal-sub002/internal/transport"
)

// DefaultTimeout applies when Options.DefaultTimeout is zero.
const DefaultTimeout = 5 * time.Second

// Options configures a portal instance.
type Options struct {
	// LocalNode identifies this process to its peers.
	LocalNode NodeInfo

	// EnableSharedMemory turns the shared-memory transport on.
	EnableSharedMemory bool

	// EnableOptimizedPath reserves the optimized codec path. Currently inert.
	EnableOptimizedPath bool

	// EnableCompression and EnableEncryption are accepted and carried but
	// have no effect yet.
	EnableCompression bool
	EnableEncryption  bool

	// MaxMessageSize bounds payloads; zero means the 64 MiB default.
	MaxMessageSize uint32

	// DefaultTimeout is used by Send/Receive/Broadcast when the caller does
	// not pass an explicit timeout.
	DefaultTimeout time.Duration

	// PerformanceMonitoring records every call outcome and feeds strategy
	// selection.
	PerformanceMonitoring bool

	// RegionSize is the size of regions created on demand; zero means 1 MiB.
	RegionSize int

	// PollInterval is the sleep between ring-buffer attempts while waiting
	// out a full or empty buffer; zero means 1 ms.
	PollInterval time.Duration

	// Codec converts application values to bytes; nil means JSONCodec.
	Codec Codec
}

// DefaultOptions returns the configuration used when callers have no
// special needs: shared memory on, monitoring on, JSON payloads.
func DefaultOptions(local NodeInfo) Options {
	return Options{
		LocalNode:             local,
		EnableSharedMemory:    true,
		PerformanceMonitoring: true,
		DefaultTimeout:        DefaultTimeout,
	}
}

// Result is the outcome of one destination within a Broadcast.
type Result struct {
	Node     NodeInfo
	Err      error
	Duration time.Duration
}

// Portal is the facade over the transport manager and performance monitor.
type Portal struct {
	opts    Options
	codec   Codec
	monitor *perf.Monitor
	manager *transport.Manager
}

// New creates a portal. The returned instance owns its regions and must be
// closed to release them.
func New(opts Options) *Portal {
	if opts.DefaultTimeout == 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	codec := opts.Codec
	if codec == nil {
		codec = JSONCodec{}
	}

	var monitor *perf.Monitor
	if opts.PerformanceMonitoring {
		monitor = perf.NewMonitor()
	}

	manager := transport.NewManager(transport.ManagerConfig{
		Local:              opts.LocalNode,
		EnableSharedMemory: opts.EnableSharedMemory,
		SharedMemory: transport.ShmConfig{
			MaxMessageSize: opts.MaxMessageSize,
			RegionSize:     opts.RegionSize,
			PollInterval:   opts.PollInterval,
		},
	}, monitor)

	return &Portal{
		opts:    opts,
		codec:   codec,
		monitor: monitor,
		manager: manager,
	}
}

// RegisterNode adds a peer to the node registry.
func (p *Portal) RegisterNode(n NodeInfo) error {
	return p.manager.RegisterNode(n)
}

// Send encodes value and delivers it to the destination within the default
// timeout.
func (p *Portal) Send(value any, to NodeInfo) error {
	return p.SendWithTimeout(value, to, p.opts.DefaultTimeout)
}

// SendWithTimeout encodes value and delivers it within the given timeout.
// The outcome is always recorded to the performance monitor; failures are
// attributed to the universal sentinel strategy so a failed send never
// pollutes the history of the transport that would have succeeded.
func (p *Portal) SendWithTimeout(value any, to NodeInfo, timeout time.Duration) error {
	start := time.Now()

	data, err := p.codec.Encode(value)
	if err != nil {
		p.recordSend(to, transport.NameUniversalNetwork, 0, time.Since(start), false)
		return err
	}

	strategy, err := p.manager.Send(to, data, timeout)
	if err != nil {
		p.recordSend(to, transport.NameUniversalNetwork, len(data), time.Since(start), false)
		return err
	}

	p.recordSend(to, strategy.Name(), len(data), time.Since(start), true)
	return nil
}

// Receive waits for the next message from the given node and decodes it
// into out, within the default timeout.
func (p *Portal) Receive(out any, from NodeInfo) error {
	return p.ReceiveWithTimeout(out, from, p.opts.DefaultTimeout)
}

// ReceiveWithTimeout waits for the next message within the given timeout.
func (p *Portal) ReceiveWithTimeout(out any, from NodeInfo, timeout time.Duration) error {
	start := time.Now()

	payload, strategy, err := p.manager.Receive(from, timeout)
	if err != nil {
		p.recordReceive(from, transport.NameUniversalNetwork, 0, time.Since(start), false)
		return err
	}
	if err := p.codec.Decode(payload, out); err != nil {
		p.recordReceive(from, transport.NameUniversalNetwork, len(payload), time.Since(start), false)
		return err
	}

	p.recordReceive(from, strategy.Name(), len(payload), time.Since(start), true)
	return nil
}

// Broadcast fans value out to every destination concurrently. The result
// slice preserves the input order regardless of completion order; each
// destination targets an independent region, so branches never contend.
func (p *Portal) Broadcast(value any, destinations []NodeInfo) []Result {
	results := make([]Result, len(destinations))
	var wg sync.WaitGroup
	for i, node := range destinations {
		wg.Add(1)
		go func(i int, node NodeInfo) {
			defer wg.Done()
			start := time.Now()
			err := p.SendWithTimeout(value, node, p.opts.DefaultTimeout)
			results[i] = Result{Node: node, Err: err, Duration: time.Since(start)}
		}(i, node)
	}
	wg.Wait()
	return results
}

// AvailableTransports lists the strategies this portal can drive.
func (p *Portal) AvailableTransports() []string {
	return p.manager.AvailableTransports()
}

// PerformanceMetrics aggregates recorded outcomes across all destinations.
// Zero-valued when monitoring is disabled.
func (p *Portal) PerformanceMetrics() perf.OverallMetrics {
	if p.monitor == nil {
		return perf.OverallMetrics{}
	}
	return p.monitor.GetOverallMetrics()
}

// PerformanceData returns the aggregate view for one destination, or nil
// when monitoring is disabled or nothing succeeded yet.
func (p *Portal) PerformanceData(node NodeInfo) *perf.PerformanceData {
	if p.monitor == nil {
		return nil
	}
	return p.monitor.GetPerformanceData(node.ID)
}

// CheckConnectivity probes whether the destination is reachable right now.
func (p *Portal) CheckConnectivity(node NodeInfo) bool {
	return p.manager.CheckConnectivity(node, p.opts.DefaultTimeout)
}

// Manager exposes the transport manager for diagnostics and tooling.
func (p *Portal) Manager() *transport.Manager {
	return p.manager
}

// Close releases every region the portal owns.
func (p *Portal) Close() error {
	return p.manager.Close()
}

func (p *Portal) recordSend(to NodeInfo, strategy string, size int, d time.Duration, ok bool) {
	if p.monitor != nil {
		p.monitor.RecordSend(to.ID, strategy, size, d, ok)
	}
}

func (p *Portal) recordReceive(from NodeInfo, strategy string, size int, d time.Duration, ok bool) {
	if p.monitor != nil {
		p.monitor.RecordReceive(from.ID, strategy, size, d, ok)
	}
}
