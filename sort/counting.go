package sort

import "math"

// Counting is the histogram sort: depth quantized into uniform bins over
// [near, far], one histogram pass, prefix sum, then a stable scatter.
// O(n) time, O(bins) auxiliary memory, reused across frames.
type Counting struct {
	bins    int
	hist    []uint32
	scratch []uint32
}

func NewCounting(bins int) *Counting {
	if bins <= 0 {
		bins = DefaultBins
	}
	return &Counting{bins: bins}
}

func (c *Counting) Name() string { return StrategyCounting }

func (c *Counting) Sort(order []uint32, depths []float32, near, far float32) []uint32 {
	return scatterSort(order, depths, near, far, c.bins, &c.hist, &c.scratch, uniformKey)
}

// uniformKey maps depth to a bin, reversed so ascending keys run
// far-to-near.
func uniformKey(depth, near, far float32, bins int) uint32 {
	t := normalizeDepth(depth, near, far)
	return uint32(bins-1) - uint32(t*float32(bins-1))
}

func normalizeDepth(depth, near, far float32) float32 {
	if far <= near {
		return 0
	}
	t := (depth - near) / (far - near)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

type binKeyFunc func(depth, near, far float32, bins int) uint32

// scatterSort is the shared histogram/prefix-sum/scatter core. Scatter
// walks the input in ascending index order, which makes equal-bin ties
// resolve by index and keeps repeated runs bit-identical.
func scatterSort(order []uint32, depths []float32, near, far float32, bins int, hist, scratch *[]uint32, key binKeyFunc) []uint32 {
	if len(order) <= 1 {
		return order
	}

	if cap(*hist) < bins {
		*hist = make([]uint32, bins)
	}
	h := (*hist)[:bins]
	clear(h)

	for _, idx := range order {
		h[key(depths[idx], near, far, bins)]++
	}

	var sum uint32
	for i := range h {
		count := h[i]
		h[i] = sum
		sum += count
	}

	if cap(*scratch) < len(order) {
		*scratch = make([]uint32, len(order))
	}
	out := (*scratch)[:len(order)]
	for _, idx := range order {
		k := key(depths[idx], near, far, bins)
		out[h[k]] = idx
		h[k]++
	}

	copy(order, out)
	return order
}

// CameraBinned is the camera-relative histogram sort: the bin budget is
// spent non-uniformly, denser close to the camera where depth differences
// are most visible, coarser with distance. The warp is sqrt(t), which
// roughly doubles near-field resolution relative to uniform binning.
type CameraBinned struct {
	bins    int
	hist    []uint32
	scratch []uint32
}

func NewCameraBinned(bins int) *CameraBinned {
	if bins <= 0 {
		bins = DefaultBins
	}
	return &CameraBinned{bins: bins}
}

func (c *CameraBinned) Name() string { return StrategyBinned }

func (c *CameraBinned) Sort(order []uint32, depths []float32, near, far float32) []uint32 {
	return scatterSort(order, depths, near, far, c.bins, &c.hist, &c.scratch, warpedKey)
}

func warpedKey(depth, near, far float32, bins int) uint32 {
	t := normalizeDepth(depth, near, far)
	u := float32(math.Sqrt(float64(t)))
	return uint32(bins-1) - uint32(u*float32(bins-1))
}
