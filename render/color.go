package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/splat3d/splatrt/core"
	"github.com/splat3d/splatrt/splat"
)

// ColorMode selects the granularity of SH evaluation.
type ColorMode int

const (
	// ColorPerSplat evaluates every visible splat's SH against the exact
	// camera-to-splat direction.
	ColorPerSplat ColorMode = iota
	// ColorPerPalette evaluates each unique coefficient set once per
	// frame against a representative direction; splats sharing a set
	// share the result. O(unique sets) instead of O(splats).
	ColorPerPalette
)

// ColorEvaluator resolves per-splat RGBA for the current camera. Splats
// without SH keep their flat color; either way opacity rides in the
// alpha channel for the compositor.
type ColorEvaluator struct {
	Mode        ColorMode
	Specialized bool

	palette  *splat.Palette
	refs     []int32 // splat index -> palette entry, -1 = per-splat path
	boundGen uint64
	bound    bool
}

// NewColorEvaluator builds an evaluator. paletteCap bounds the number of
// unique coefficient sets tracked in palette mode; sets interned past the
// cap fall back to per-splat evaluation.
func NewColorEvaluator(mode ColorMode, specialized bool, paletteCap int) *ColorEvaluator {
	e := &ColorEvaluator{Mode: mode, Specialized: specialized}
	if mode == ColorPerPalette {
		e.palette = splat.NewPalette(paletteCap)
	}
	return e
}

func (e *ColorEvaluator) evaluator(coeffCount int) splat.Evaluator {
	if !e.Specialized {
		return splat.EvalSH
	}
	degree, ok := splat.DegreeForCoefficients(coeffCount)
	if !ok {
		return splat.EvalSH
	}
	return splat.EvaluatorForDegree(degree)
}

// Evaluate writes the resolved color of every visible splat into
// fb.Projected. Must run after projection and before compositing.
func (e *ColorEvaluator) Evaluate(st *splat.Store, view core.View, fb *FrameBuffers) {
	positions, _, opacities, colors, sh := st.Snapshot()

	if e.Mode == ColorPerPalette {
		e.bind(st, sh)
		e.palette.Resolve(view.Forward(), e.paletteEvaluator(sh))
	}

	camPos := view.CameraPosition()
	for _, idx := range fb.Visible {
		i := int(idx)
		coeffs := sh[i]
		var rgb mgl32.Vec3
		switch {
		case len(coeffs) == 0:
			rgb = colors[i]
		case e.Mode == ColorPerPalette && e.refs[i] >= 0:
			rgb = e.palette.Color(int(e.refs[i]))
		default:
			dir := positions[i].Sub(camPos).Normalize()
			rgb = e.evaluator(len(coeffs))(coeffs, dir)
		}
		fb.Projected[i].Color = mgl32.Vec4{rgb.X(), rgb.Y(), rgb.Z(), opacities[i]}
	}
}

// paletteEvaluator picks one evaluator for Resolve; entries may mix
// degrees, so the branching path is used unless specialization is on and
// all entries share a degree (the common case for codebook formats).
func (e *ColorEvaluator) paletteEvaluator(sh [][]mgl32.Vec3) splat.Evaluator {
	if !e.Specialized {
		return splat.EvalSH
	}
	return func(coeffs []mgl32.Vec3, dir mgl32.Vec3) mgl32.Vec3 {
		return e.evaluator(len(coeffs))(coeffs, dir)
	}
}

// bind interns every splat's coefficient set once per store generation.
// Interning is keyed by content, so codebook-compressed models collapse
// to a handful of entries.
func (e *ColorEvaluator) bind(st *splat.Store, sh [][]mgl32.Vec3) {
	gen := st.Generation()
	if e.bound && gen == e.boundGen {
		return
	}
	n := len(sh)
	if cap(e.refs) < n {
		e.refs = make([]int32, n)
	}
	e.refs = e.refs[:n]
	e.palette.Reset()
	for i, coeffs := range sh {
		if len(coeffs) == 0 {
			e.refs[i] = -1
			continue
		}
		if entry, ok := e.palette.Intern(coeffs); ok {
			e.refs[i] = int32(entry)
		} else {
			e.refs[i] = -1
		}
	}
	e.bound = true
	e.boundGen = gen
}
