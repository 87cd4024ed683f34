// Package sort produces back-to-front draw orders over the visible splat
// subset. Strategies are interchangeable behind one interface and share
// the same contract: after sorting, depth(order[i]) >= depth(order[i+1])
// within the strategy's quantization tolerance, with ties broken by
// ascending splat index so identical input always yields the identical
// permutation.
package sort

import "fmt"

// Strategy orders splat indices back-to-front by view-space depth.
type Strategy interface {
	Name() string
	// Sort reorders order in place (indices into depths) and returns it.
	// near/far bound the depth range for quantizing strategies.
	Sort(order []uint32, depths []float32, near, far float32) []uint32
}

// Strategy names accepted by ByName and the configuration layer.
const (
	StrategyCounting = "counting"
	StrategyBinned   = "binned"
	StrategyStable   = "stable"
	StrategyAuto     = "auto"
)

// DefaultBins is the quantization resolution of the histogram strategies.
// Depth artifacts at 2^16 bins are below visual threshold for alpha
// blending.
const DefaultBins = 1 << 16

// AutoThreshold is the splat count above which Auto trades the exact
// library sort for the O(n) counting sort.
const AutoThreshold = 50_000

// ByName returns a fresh strategy instance for a configuration name.
// StrategyAuto is resolved per scene via Auto and rejected here.
func ByName(name string) (Strategy, error) {
	switch name {
	case StrategyCounting:
		return NewCounting(DefaultBins), nil
	case StrategyBinned:
		return NewCameraBinned(DefaultBins), nil
	case StrategyStable:
		return &Stable{}, nil
	default:
		return nil, fmt.Errorf("sort: unknown strategy %q", name)
	}
}

// Auto picks a strategy by splat count: full-precision for small scenes,
// counting sort once linear time starts to matter.
func Auto(splatCount int) Strategy {
	if splatCount < AutoThreshold {
		return &Stable{}
	}
	return NewCounting(DefaultBins)
}
