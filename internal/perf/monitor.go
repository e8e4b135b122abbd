// Package perf maintains rolling histories of transport call outcomes and
// derives strategy recommendations from them. One monitor instance belongs to
// one portal; histories are process-private and never live in shared memory.
package perf

import (
	"sync"
	"time"

	"github.com/Gyangu/data-portal-sub002/internal/metrics"
)

// historyCap bounds each rolling history to the most recent entries.
const historyCap = 1000

// Record is a single observed call outcome.
type Record struct {
	Strategy  string
	DataSize  int
	Duration  time.Duration
	Success   bool
	Timestamp time.Time
}

// PerformanceData is the aggregate view for one destination.
type PerformanceData struct {
	AverageLatency      time.Duration
	Throughput          float64 // payload bytes per second
	SuccessRate         float64
	RecommendedStrategy string
}

// OverallMetrics aggregates across every destination the monitor has seen.
type OverallMetrics struct {
	Operations     int
	SuccessRate    float64
	AverageLatency time.Duration
	TotalBytes     int64
}

// Monitor records send/receive outcomes per destination and per strategy.
// Safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	byDest     map[string][]Record
	byStrategy map[string][]Record
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		byDest:     make(map[string][]Record),
		byStrategy: make(map[string][]Record),
	}
}

// RecordSend appends a send outcome for the given destination.
func (m *Monitor) RecordSend(dest, strategy string, dataSize int, duration time.Duration, success bool) {
	metrics.SendsTotal.WithLabelValues(strategy, outcome(success)).Inc()
	metrics.OperationLatencySeconds.WithLabelValues(strategy, "send").Observe(duration.Seconds())
	if success {
		metrics.TransferBytesTotal.WithLabelValues(strategy, "send").Add(float64(dataSize))
	}
	m.record(dest, strategy, dataSize, duration, success)
}

// RecordReceive appends a receive outcome for the given destination.
func (m *Monitor) RecordReceive(dest, strategy string, dataSize int, duration time.Duration, success bool) {
	metrics.ReceivesTotal.WithLabelValues(strategy, outcome(success)).Inc()
	metrics.OperationLatencySeconds.WithLabelValues(strategy, "receive").Observe(duration.Seconds())
	if success {
		metrics.TransferBytesTotal.WithLabelValues(strategy, "receive").Add(float64(dataSize))
	}
	m.record(dest, strategy, dataSize, duration, success)
}

func (m *Monitor) record(dest, strategy string, dataSize int, duration time.Duration, success bool) {
	rec := Record{
		Strategy:  strategy,
		DataSize:  dataSize,
		Duration:  duration,
		Success:   success,
		Timestamp: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byDest[dest] = appendBounded(m.byDest[dest], rec)
	m.byStrategy[strategy] = appendBounded(m.byStrategy[strategy], rec)
}

func appendBounded(history []Record, rec Record) []Record {
	history = append(history, rec)
	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}
	return history
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// GetPerformanceData returns the aggregate view for one destination, or nil
// until at least one successful observation exists.
func (m *Monitor) GetPerformanceData(dest string) *PerformanceData {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.byDest[dest]
	succeeded := 0
	for _, r := range history {
		if r.Success {
			succeeded++
		}
	}
	if succeeded == 0 {
		return nil
	}

	var latencySum time.Duration
	var bytesSum int64
	var durationSum time.Duration
	for _, r := range history {
		if !r.Success {
			continue
		}
		latencySum += r.Duration
		bytesSum += int64(r.DataSize)
		durationSum += r.Duration
	}

	data := &PerformanceData{
		AverageLatency:      latencySum / time.Duration(succeeded),
		SuccessRate:         float64(succeeded) / float64(len(history)),
		RecommendedStrategy: recommend(history),
	}
	if durationSum > 0 {
		data.Throughput = float64(bytesSum) / durationSum.Seconds()
	}
	return data
}

// recommend scores each strategy observed for a destination by
// latency x (1 - successRate); lower is better. Ties break toward the most
// recently observed strategy. Caller holds the lock.
func recommend(history []Record) string {
	type stats struct {
		latencySum time.Duration
		total      int
		succeeded  int
		lastSeen   time.Time
	}
	perStrategy := make(map[string]*stats)
	for _, r := range history {
		s := perStrategy[r.Strategy]
		if s == nil {
			s = &stats{}
			perStrategy[r.Strategy] = s
		}
		s.total++
		if r.Success {
			s.succeeded++
			s.latencySum += r.Duration
		}
		if r.Timestamp.After(s.lastSeen) {
			s.lastSeen = r.Timestamp
		}
	}

	best := ""
	bestScore := 0.0
	var bestSeen time.Time
	for name, s := range perStrategy {
		if s.succeeded == 0 {
			continue
		}
		avgLatency := float64(s.latencySum) / float64(s.succeeded)
		successRate := float64(s.succeeded) / float64(s.total)
		score := avgLatency * (1 - successRate)
		if best == "" || score < bestScore || (score == bestScore && s.lastSeen.After(bestSeen)) {
			best = name
			bestScore = score
			bestSeen = s.lastSeen
		}
	}
	return best
}

// GetOverallMetrics aggregates across all destinations.
func (m *Monitor) GetOverallMetrics() OverallMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out OverallMetrics
	var latencySum time.Duration
	succeeded := 0
	for _, history := range m.byDest {
		for _, r := range history {
			out.Operations++
			if r.Success {
				succeeded++
				latencySum += r.Duration
				out.TotalBytes += int64(r.DataSize)
			}
		}
	}
	if out.Operations > 0 {
		out.SuccessRate = float64(succeeded) / float64(out.Operations)
	}
	if succeeded > 0 {
		out.AverageLatency = latencySum / time.Duration(succeeded)
	}
	return out
}

// StrategyHistory returns a copy of the rolling history for one strategy,
// for diagnostics.
func (m *Monitor) StrategyHistory(strategy string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.byStrategy[strategy]
	out := make([]Record, len(history))
	copy(out, history)
	return out
}
