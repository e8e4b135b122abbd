package portal

import (
	"github.com/Gyangu/data-portal-sub002/internal/transport"
)

// NodeInfo identifies a communication endpoint. See the transport package
// for field semantics; it is re-exported here so application code never
// imports internal packages.
type NodeInfo = transport.NodeInfo

// Capabilities describes what a node's implementation supports.
type Capabilities = transport.Capabilities

// Strategy is the transport mechanism chosen for a call.
type Strategy = transport.Strategy

// CurrentMachineID returns the stable identifier of this host, the value
// locality decisions compare against.
func CurrentMachineID() string {
	return transport.CurrentMachineID()
}

// LocalNode builds a NodeInfo for a peer on this machine, reachable through
// the named shared-memory region.
func LocalNode(id, language, regionName string) NodeInfo {
	return NodeInfo{
		ID:               id,
		Language:         language,
		MachineID:        transport.CurrentMachineID(),
		SharedMemoryName: regionName,
		Capabilities: Capabilities{
			Transports:      []string{transport.NameSharedMemory},
			ProtocolVersion: 1,
		},
	}
}

// RegionNameBetween derives the region name carrying traffic from one node
// to the other. Both endpoints compute the same name without negotiation.
func RegionNameBetween(from, to NodeInfo) string {
	return transport.RegionNameFor(from, to)
}
