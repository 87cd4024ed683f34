package sort

import (
	"github.com/splat3d/splatrt/core"
)

// Throttle decides whether a frame needs a fresh sort. The previous order
// is reused while the camera stays within epsilon and the splat set is
// unchanged; a static camera over static geometry keeps the old order
// depth-exact by construction. Geometry updates always invalidate.
type Throttle struct {
	PositionEpsilon float32
	AngleEpsilon    float32

	last    core.View
	lastGen uint64
	has     bool
}

// ShouldSort reports whether the order must be recomputed for this view
// and store generation, and records them as the new baseline when so.
func (t *Throttle) ShouldSort(v core.View, generation uint64) bool {
	if t.has && generation == t.lastGen && !core.Changed(t.last, v, t.PositionEpsilon, t.AngleEpsilon) {
		return false
	}
	t.last = v
	t.lastGen = generation
	t.has = true
	return true
}

// Invalidate forces the next ShouldSort to return true.
func (t *Throttle) Invalidate() { t.has = false }

// Engine owns one view's ordering state: the active strategy, the
// throttle, and the cached order from the previous frame. While the user
// is interacting it may downgrade to a cheaper strategy; the first frame
// after interaction ends re-sorts with the primary strategy even if the
// camera has stopped moving, so the final camera state always converges
// to the same full-precision order.
type Engine struct {
	primary  Strategy
	fallback Strategy
	throttle Throttle

	interacting  bool
	usedFallback bool

	cached []uint32
	valid  bool
}

// NewEngine builds an engine around a primary strategy. fallback may be
// nil to disable interaction downgrading.
func NewEngine(primary, fallback Strategy, posEps, angEps float32) *Engine {
	return &Engine{
		primary:  primary,
		fallback: fallback,
		throttle: Throttle{PositionEpsilon: posEps, AngleEpsilon: angEps},
	}
}

// SetInteracting marks the start or end of user interaction.
func (e *Engine) SetInteracting(active bool) { e.interacting = active }

// Invalidate drops the cached order (e.g. after a store swap).
func (e *Engine) Invalidate() {
	e.valid = false
	e.throttle.Invalidate()
}

// Strategy returns the strategy the next sort would run with.
func (e *Engine) Strategy() Strategy {
	if e.interacting && e.fallback != nil {
		return e.fallback
	}
	return e.primary
}

// Order returns the back-to-front permutation of visible for this frame.
// visible must list the visible splat indices in ascending order; the
// engine copies it, so the caller's slice may be reused. The returned
// slice is owned by the engine and valid until the next call.
func (e *Engine) Order(visible []uint32, depths []float32, view core.View, generation uint64, near, far float32) []uint32 {
	needsUpgrade := e.usedFallback && !e.interacting
	if e.valid && !needsUpgrade && !e.throttle.ShouldSort(view, generation) {
		return e.cached
	}
	// ShouldSort records the baseline even when an upgrade forced the
	// resort; make sure it has this frame's state either way.
	e.throttle.ShouldSort(view, generation)

	if cap(e.cached) < len(visible) {
		e.cached = make([]uint32, len(visible))
	}
	e.cached = e.cached[:len(visible)]
	copy(e.cached, visible)

	strategy := e.Strategy()
	strategy.Sort(e.cached, depths, near, far)
	e.usedFallback = e.interacting && e.fallback != nil
	e.valid = true
	return e.cached
}
