package transport

import (
	"fmt"
	"os"
	"sync"

	"github.com/shirou/gopsutil/host"
)

// NodeInfo identifies a communication endpoint. A node is reachable over
// shared memory when SharedMemoryName is set, over the network when Endpoint
// is set; with neither, no strategy can reach it. Values are immutable once
// built and never persisted by the transport core.
type NodeInfo struct {
	ID               string
	Language         string
	MachineID        string
	Endpoint         string
	SharedMemoryName string
	Capabilities     Capabilities
	Metadata         map[string]string
}

// Capabilities describes what a node's implementation supports.
type Capabilities struct {
	Transports      []string
	MaxMessageSize  uint32
	ProtocolVersion uint8
}

var (
	machineIDOnce sync.Once
	machineID     string
)

// CurrentMachineID returns a stable identifier for this host. gopsutil's
// host ID (machine-id on Linux) is preferred; the hostname is the fallback
// so the comparison still works on stripped-down systems.
func CurrentMachineID() string {
	machineIDOnce.Do(func() {
		if id, err := host.HostID(); err == nil && id != "" {
			machineID = id
			return
		}
		name, err := os.Hostname()
		if err != nil {
			name = "unknown-host"
		}
		machineID = name
	})
	return machineID
}

// IsLocalMachine reports whether the node lives on the same host as this
// process.
func (n NodeInfo) IsLocalMachine() bool {
	return n.MachineID != "" && n.MachineID == CurrentMachineID()
}

// Reachable reports whether any strategy could possibly reach the node.
// Local nodes are always reachable: a region name can be derived from the
// id pair even when none was configured.
func (n NodeInfo) Reachable() bool {
	return n.Endpoint != "" || n.SharedMemoryName != "" || n.IsLocalMachine()
}

// RegionNameFor derives the region name carrying traffic from one node to
// another. The base is the sorted id pair, so both sides agree on it without
// negotiation; the sender id suffix keeps the two directions of a duplex
// channel on separate regions, each with exactly one writer.
func RegionNameFor(from, to NodeInfo) string {
	a, b := from.ID, to.ID
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s-%s--%s", a, b, from.ID)
}
