package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Gyangu/data-portal-sub002/internal/config"
	"github.com/Gyangu/data-portal-sub002/internal/log"
	"github.com/Gyangu/data-portal-sub002/internal/metrics"
	"github.com/Gyangu/data-portal-sub002/pkg/portal"
)

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a loopback shared-memory throughput benchmark",
	Long: `Run a loopback benchmark that streams messages through a shared-memory
region on this machine and reports throughput and latency statistics.

The sender and receiver run inside this process but exchange data through
the same mmap'd ring a pair of separate processes would use, so the numbers
reflect real framing, checksum, and polling costs.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBench(cmd.Flags()); err != nil {
			slog.Error("benchmark failed", "error", err)
			os.Exit(1)
		}
	},
}

var (
	benchCount      int
	benchSize       int
	benchRegionSize int
	benchTimeout    time.Duration
)

func init() {
	benchCmd.Flags().IntVarP(&benchCount, "count", "n", 10000,
		"number of messages to transfer")
	benchCmd.Flags().IntVarP(&benchSize, "size", "s", 1024,
		"payload size in bytes")
	benchCmd.Flags().IntVar(&benchRegionSize, "region-size", 1<<20,
		"shared-memory region size in bytes")
	benchCmd.Flags().DurationVar(&benchTimeout, "timeout", 10*time.Second,
		"per-operation timeout")
}

// benchMessage is the value streamed through the portal during a benchmark.
type benchMessage struct {
	Seq     int    `json:"seq"`
	Payload []byte `json:"payload"`
}

// optionsFromConfig maps the transport section of the loaded config onto
// facade options. The local node is filled in by the caller.
func optionsFromConfig(tc config.TransportConfig) portal.Options {
	return portal.Options{
		EnableSharedMemory:    tc.EnableSharedMemory,
		EnableOptimizedPath:   tc.EnableOptimizedPath,
		EnableCompression:     tc.EnableCompression,
		EnableEncryption:      tc.EnableEncryption,
		MaxMessageSize:        uint32(tc.MaxMessageSize),
		DefaultTimeout:        tc.DefaultTimeoutDuration(),
		PerformanceMonitoring: tc.PerformanceMonitoring,
		RegionSize:            tc.RegionSize,
		PollInterval:          tc.PollIntervalDuration(),
	}
}

func runBench(flags *pflag.FlagSet) error {
	var cfg *config.GlobalConfig
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if err := log.Init(cfg.Log); err != nil {
			return fmt.Errorf("failed to init logging: %w", err)
		}
		if cfg.Metrics.Enabled {
			srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
			srv.Start()
			defer srv.Stop(context.Background())
		}
	}

	regionName := fmt.Sprintf("bench_%d", os.Getpid())

	local := portal.LocalNode(fmt.Sprintf("bench-tx-%d", os.Getpid()), "go", regionName)
	peer := portal.LocalNode(fmt.Sprintf("bench-rx-%d", os.Getpid()), "go", regionName)

	opts := portal.DefaultOptions(local)
	if cfg != nil {
		opts = optionsFromConfig(cfg.Transport)
		opts.LocalNode = local
	}
	// Explicit flags win over config values.
	if cfg == nil || flags.Changed("timeout") {
		opts.DefaultTimeout = benchTimeout
	}
	if cfg == nil || flags.Changed("region-size") {
		opts.RegionSize = benchRegionSize
	}
	benchTimeout = opts.DefaultTimeout

	p := portal.New(opts)
	defer p.Close()

	if err := p.RegisterNode(peer); err != nil {
		return fmt.Errorf("failed to register peer: %w", err)
	}

	payload := make([]byte, benchSize)
	if _, err := rand.Read(payload); err != nil {
		return fmt.Errorf("failed to generate payload: %w", err)
	}

	fmt.Printf("Streaming %d messages of %d bytes through region %s...\n",
		benchCount, benchSize, regionName)

	recvErr := make(chan error, 1)
	go func() {
		var msg benchMessage
		for i := 0; i < benchCount; i++ {
			if err := p.ReceiveWithTimeout(&msg, peer, benchTimeout); err != nil {
				recvErr <- fmt.Errorf("receive %d: %w", i, err)
				return
			}
			if msg.Seq != i {
				recvErr <- fmt.Errorf("receive %d: got seq %d", i, msg.Seq)
				return
			}
		}
		recvErr <- nil
	}()

	start := time.Now()
	for i := 0; i < benchCount; i++ {
		if err := p.SendWithTimeout(benchMessage{Seq: i, Payload: payload}, peer, benchTimeout); err != nil {
			return fmt.Errorf("send %d: %w", i, err)
		}
	}
	if err := <-recvErr; err != nil {
		return err
	}
	elapsed := time.Since(start)

	totalBytes := float64(benchCount) * float64(benchSize)
	fmt.Printf("Transferred %d messages in %v\n", benchCount, elapsed.Round(time.Millisecond))
	fmt.Printf("  %.0f msg/s\n", float64(benchCount)/elapsed.Seconds())
	fmt.Printf("  %.2f MiB/s payload\n", totalBytes/elapsed.Seconds()/(1<<20))

	stats := p.PerformanceMetrics()
	fmt.Printf("  avg latency %v over %d operations (%.1f%% success)\n",
		stats.AverageLatency.Round(time.Microsecond),
		stats.Operations,
		stats.SuccessRate*100)

	return nil
}
