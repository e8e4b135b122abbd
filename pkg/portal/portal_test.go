//go:build unix

package portal

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gyangu/data-portal-sub002/internal/shm"
	"github.com/Gyangu/data-portal-sub002/internal/transport"
)

func testRegion(t *testing.T, suffix string) string {
	t.Helper()
	name := fmt.Sprintf("pt-%d-%s", os.Getpid(), suffix)
	t.Cleanup(func() {
		_ = shm.Remove(name)
	})
	return name
}

func newTestPortal(t *testing.T) *Portal {
	t.Helper()
	p := New(DefaultOptions(NodeInfo{ID: "local-test", MachineID: CurrentMachineID()}))
	t.Cleanup(func() {
		_ = p.Close()
	})
	return p
}

func TestEndToEndStructRoundTrip(t *testing.T) {
	p := newTestPortal(t)
	region := testRegion(t, "e2e")
	node := LocalNode("peer-a", "go", region)

	require.NoError(t, p.Send(sample{A: 1, B: "x"}, node))

	var out sample
	require.NoError(t, p.Receive(&out, node))
	assert.Equal(t, sample{A: 1, B: "x"}, out)

	// The region already exists, so a second create is a no-op.
	created, err := p.Manager().SharedMemory().GetOrCreateRegion(region, 0)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSendRecordsPerformance(t *testing.T) {
	p := newTestPortal(t)
	node := LocalNode("peer-perf", "go", testRegion(t, "perf"))

	require.NoError(t, p.Send(sample{A: 7, B: "y"}, node))

	data := p.PerformanceData(node)
	require.NotNil(t, data)
	assert.Equal(t, transport.NameSharedMemory, data.RecommendedStrategy)
	assert.Greater(t, p.PerformanceMetrics().Operations, 0)
}

func TestOperationsCountedOnce(t *testing.T) {
	p := newTestPortal(t)
	region := testRegion(t, "once")
	node := LocalNode("peer-once", "go", region)

	require.NoError(t, p.Send(sample{A: 9, B: "z"}, node))
	var out sample
	require.NoError(t, p.Receive(&out, node))

	// One send plus one receive is exactly two operations; the transport
	// layer must not add region-keyed duplicates of the same calls.
	overall := p.PerformanceMetrics()
	assert.Equal(t, 2, overall.Operations)
	assert.Nil(t, p.PerformanceData(NodeInfo{ID: region}))
}

func TestFailureRecordedAgainstSentinel(t *testing.T) {
	p := newTestPortal(t)
	remote := NodeInfo{ID: "far", MachineID: "other-machine", Endpoint: "10.1.1.1:1"}

	err := p.Send(sample{A: 1}, remote)
	assert.ErrorIs(t, err, transport.ErrTransportNotAvailable)

	// Failures count in the overall metrics but never produce a
	// per-destination recommendation.
	assert.Nil(t, p.PerformanceData(remote))
	overall := p.PerformanceMetrics()
	assert.Greater(t, overall.Operations, 0)
	assert.Zero(t, overall.SuccessRate)
}

func TestReceiveTimeoutSurfaces(t *testing.T) {
	p := newTestPortal(t)
	node := LocalNode("peer-quiet", "go", testRegion(t, "quiet"))

	var out sample
	err := p.ReceiveWithTimeout(&out, node, 30*time.Millisecond)
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestBroadcastPreservesOrder(t *testing.T) {
	p := newTestPortal(t)

	nodes := []NodeInfo{
		LocalNode("bc-1", "go", testRegion(t, "bc1")),
		{ID: "bc-unreachable", MachineID: "other-machine"},
		LocalNode("bc-3", "go", testRegion(t, "bc3")),
	}

	results := p.Broadcast(sample{A: 2, B: "fan"}, nodes)
	require.Len(t, results, len(nodes))

	for i, r := range results {
		assert.Equal(t, nodes[i].ID, r.Node.ID, "result %d out of order", i)
	}
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, transport.ErrNodeUnreachable)
	assert.NoError(t, results[2].Err)

	// Successful branches really delivered.
	var out sample
	require.NoError(t, p.Receive(&out, nodes[0]))
	assert.Equal(t, "fan", out.B)
}

func TestAvailableTransports(t *testing.T) {
	p := newTestPortal(t)
	assert.Contains(t, p.AvailableTransports(), transport.NameSharedMemory)

	off := New(Options{LocalNode: NodeInfo{ID: "off"}})
	defer off.Close()
	assert.Empty(t, off.AvailableTransports())
}

func TestCheckConnectivityLoopback(t *testing.T) {
	p := newTestPortal(t)
	assert.True(t, p.CheckConnectivity(LocalNode("peer-conn", "go", testRegion(t, "conn"))))
	assert.False(t, p.CheckConnectivity(NodeInfo{ID: "far", MachineID: "other", Endpoint: "1.2.3.4:1"}))
}

func TestMonitoringDisabled(t *testing.T) {
	p := New(Options{
		LocalNode:          NodeInfo{ID: "silent", MachineID: CurrentMachineID()},
		EnableSharedMemory: true,
	})
	defer p.Close()

	node := LocalNode("peer-silent", "go", testRegion(t, "silent"))
	require.NoError(t, p.Send(sample{A: 3}, node))

	assert.Nil(t, p.PerformanceData(node))
	assert.Zero(t, p.PerformanceMetrics().Operations)
}
