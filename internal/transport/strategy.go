package transport

// StrategyKind enumerates the closed set of transport mechanisms. New
// mechanisms are added by extending this enum, never by subclassing.
type StrategyKind int

const (
	// KindSharedMemory moves bytes through a mapped region on the local host.
	KindSharedMemory StrategyKind = iota
	// KindOptimizedNetwork is the high-throughput network path.
	KindOptimizedNetwork
	// KindUniversalNetwork is the lowest-common-denominator network path,
	// also used as the sentinel when attributing failures.
	KindUniversalNetwork
)

// Strategy is the transport choice for a single call. SharedMemory carries
// the region name it rides on; the network kinds carry no payload.
type Strategy struct {
	Kind   StrategyKind
	Region string
}

// SharedMemory builds a shared-memory strategy bound to a region.
func SharedMemory(region string) Strategy {
	return Strategy{Kind: KindSharedMemory, Region: region}
}

// OptimizedNetwork is the high-throughput network strategy.
var OptimizedNetwork = Strategy{Kind: KindOptimizedNetwork}

// UniversalNetwork is the fallback network strategy.
var UniversalNetwork = Strategy{Kind: KindUniversalNetwork}

// Strategy names double as performance-history keys and metric labels.
const (
	NameSharedMemory     = "shared-memory"
	NameOptimizedNetwork = "optimized-network"
	NameUniversalNetwork = "universal-network"
)

// Name returns the stable string identifier for this strategy.
func (s Strategy) Name() string {
	switch s.Kind {
	case KindSharedMemory:
		return NameSharedMemory
	case KindOptimizedNetwork:
		return NameOptimizedNetwork
	default:
		return NameUniversalNetwork
	}
}

// StrategyFromName resolves a performance-history key back to a strategy.
// Shared-memory strategies come back without a region; the caller binds one.
func StrategyFromName(name string) (Strategy, bool) {
	switch name {
	case NameSharedMemory:
		return Strategy{Kind: KindSharedMemory}, true
	case NameOptimizedNetwork:
		return OptimizedNetwork, true
	case NameUniversalNetwork:
		return UniversalNetwork, true
	}
	return Strategy{}, false
}
