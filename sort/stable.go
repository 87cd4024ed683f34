package sort

import stdsort "sort"

// Stable delegates to the library's stable comparison sort: full float
// precision, no quantization. Used for smaller scenes and as the
// validation reference for the histogram strategies.
type Stable struct{}

func (Stable) Name() string { return StrategyStable }

func (Stable) Sort(order []uint32, depths []float32, _, _ float32) []uint32 {
	stdsort.SliceStable(order, func(i, j int) bool {
		return depths[order[i]] > depths[order[j]]
	})
	return order
}
