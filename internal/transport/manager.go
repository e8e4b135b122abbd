package transport

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Gyangu/data-portal-sub002/internal/perf"
)

// largePayloadThreshold is the size heuristic cutoff: bigger payloads prefer
// the high-throughput strategy when no performance history exists.
const largePayloadThreshold = 1 << 20

// connectionRegistryTTL bounds how long a node's last-used strategy is kept
// for diagnostics.
const connectionRegistryTTL = 24 * time.Hour

// ManagerConfig configures a transport manager.
type ManagerConfig struct {
	Local              NodeInfo
	EnableSharedMemory bool
	SharedMemory       ShmConfig
}

// Manager owns the node registry and dispatches every call to a transport
// chosen per destination. It is an explicit context object: all state lives
// here, is created with the manager and torn down by Close, and nothing is
// process-global.
type Manager struct {
	cfg     ManagerConfig
	monitor *perf.Monitor

	mu    sync.Mutex
	nodes map[string]NodeInfo

	shmem   *SharedMemoryTransport
	network *NetworkTransport

	// lastStrategy maps node id to the strategy of the last successful send.
	// Diagnostics only; correctness never depends on it.
	lastStrategy *cache.Cache
}

// NewManager creates a manager with an empty node registry.
// monitor may be nil to disable performance recording.
func NewManager(cfg ManagerConfig, monitor *perf.Monitor) *Manager {
	return &Manager{
		cfg:          cfg,
		monitor:      monitor,
		nodes:        make(map[string]NodeInfo),
		shmem:        NewSharedMemoryTransport(cfg.SharedMemory),
		network:      NewNetworkTransport(),
		lastStrategy: cache.New(connectionRegistryTTL, connectionRegistryTTL),
	}
}

// SharedMemory exposes the shared-memory transport for region bookkeeping.
func (m *Manager) SharedMemory() *SharedMemoryTransport { return m.shmem }

// RegisterNode adds or replaces a node in the registry.
func (m *Manager) RegisterNode(n NodeInfo) error {
	if n.ID == "" {
		return fmt.Errorf("%w: empty node id", ErrNodeNotFound)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n
	return nil
}

// Node looks a node up by id.
func (m *Manager) Node(id string) (NodeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return NodeInfo{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Nodes returns a snapshot of the registry.
func (m *Manager) Nodes() []NodeInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NodeInfo, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	return out
}

// sendRegion resolves the region carrying traffic from this process to n.
func (m *Manager) sendRegion(n NodeInfo) string {
	if n.SharedMemoryName != "" {
		return n.SharedMemoryName
	}
	return RegionNameFor(m.cfg.Local, n)
}

// receiveRegion resolves the region carrying traffic from n to this process.
func (m *Manager) receiveRegion(n NodeInfo) string {
	if n.SharedMemoryName != "" {
		return n.SharedMemoryName
	}
	return RegionNameFor(n, m.cfg.Local)
}

// SelectStrategy runs the per-call strategy state machine:
//
//  1. Local destinations are forced onto shared memory.
//  2. Otherwise a destination-specific recommendation from the performance
//     monitor wins when one exists.
//  3. Otherwise a size heuristic picks between the network strategies.
func (m *Manager) SelectStrategy(n NodeInfo, payloadSize int) (Strategy, error) {
	if !n.Reachable() {
		return Strategy{}, fmt.Errorf("%w: node %q", ErrNodeUnreachable, n.ID)
	}

	if n.IsLocalMachine() && m.cfg.EnableSharedMemory {
		return SharedMemory(m.sendRegion(n)), nil
	}

	if m.monitor != nil {
		if data := m.monitor.GetPerformanceData(n.ID); data != nil {
			if s, ok := StrategyFromName(data.RecommendedStrategy); ok {
				if s.Kind == KindSharedMemory {
					s.Region = m.sendRegion(n)
				}
				return s, nil
			}
		}
	}

	if payloadSize > largePayloadThreshold {
		return OptimizedNetwork, nil
	}
	return UniversalNetwork, nil
}

// Send dispatches payload to n via the selected strategy and returns the
// strategy that was used.
func (m *Manager) Send(n NodeInfo, payload []byte, timeout time.Duration) (Strategy, error) {
	strategy, err := m.SelectStrategy(n, len(payload))
	if err != nil {
		return Strategy{}, err
	}

	switch strategy.Kind {
	case KindSharedMemory:
		if _, err := m.shmem.GetOrCreateRegion(strategy.Region, 0); err != nil {
			return strategy, fmt.Errorf("%w: region %q: %v", ErrTransportNotAvailable, strategy.Region, err)
		}
		err = m.shmem.Send(payload, strategy.Region, timeout)
	default:
		err = m.network.Send(payload, n.Endpoint, timeout)
	}

	if err == nil {
		m.lastStrategy.Set(n.ID, strategy, cache.DefaultExpiration)
	}
	return strategy, err
}

// Receive waits for the next message from n via the selected strategy.
func (m *Manager) Receive(n NodeInfo, timeout time.Duration) ([]byte, Strategy, error) {
	if !n.Reachable() {
		return nil, Strategy{}, fmt.Errorf("%w: node %q", ErrNodeUnreachable, n.ID)
	}

	if n.IsLocalMachine() && m.cfg.EnableSharedMemory {
		region := m.receiveRegion(n)
		if _, err := m.shmem.GetOrCreateRegion(region, 0); err != nil {
			return nil, Strategy{}, fmt.Errorf("%w: region %q: %v", ErrTransportNotAvailable, region, err)
		}
		payload, err := m.shmem.Receive(region, timeout)
		return payload, SharedMemory(region), err
	}

	payload, err := m.network.Receive(n.Endpoint, timeout)
	return payload, UniversalNetwork, err
}

// CheckConnectivity probes a destination: for local nodes it writes a
// heartbeat through the shared region, for remote nodes it reports false
// until a network transport exists.
func (m *Manager) CheckConnectivity(n NodeInfo, timeout time.Duration) bool {
	if !n.Reachable() {
		return false
	}
	if n.IsLocalMachine() && m.cfg.EnableSharedMemory {
		region := m.sendRegion(n)
		if _, err := m.shmem.GetOrCreateRegion(region, 0); err != nil {
			return false
		}
		return m.shmem.SendHeartbeat(region, timeout) == nil
	}
	return false
}

// LastStrategy returns the strategy of the last successful send to a node,
// if one is recorded.
func (m *Manager) LastStrategy(nodeID string) (Strategy, bool) {
	v, ok := m.lastStrategy.Get(nodeID)
	if !ok {
		return Strategy{}, false
	}
	return v.(Strategy), true
}

// AvailableTransports lists the strategies this manager can actually drive.
func (m *Manager) AvailableTransports() []string {
	var out []string
	if m.cfg.EnableSharedMemory {
		out = append(out, NameSharedMemory)
	}
	return out
}

// Close tears down every transport the manager owns, unmapping all regions
// it created.
func (m *Manager) Close() error {
	err := m.shmem.Close()
	if err != nil {
		slog.Error("closing shared memory transport", "error", err)
	}
	return err
}
