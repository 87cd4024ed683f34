package render

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/splat3d/splatrt/splat"
)

func shSplat(pos mgl32.Vec3, coeffs []mgl32.Vec3) splat.Splat {
	s := unitSplat(pos, 1)
	s.SH = coeffs
	return s
}

func projectAll(t *testing.T, st *splat.Store, fb *FrameBuffers) {
	t.Helper()
	view := originView(640, 480, 0.1, 100)
	if n := (Projector{}).Project(st, view, CullConfig{}, fb); n != st.Len() {
		t.Fatalf("expected all %d splats visible, got %d", st.Len(), n)
	}
}

func TestEvaluateFlatFallback(t *testing.T) {
	st := loadCloud(t, []splat.Splat{{
		Position: mgl32.Vec3{0, 0, -5},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{0.1, 0.1, 0.1},
		Opacity:  0.25,
		Color:    mgl32.Vec3{0.2, 0.4, 0.6},
	}})
	var fb FrameBuffers
	projectAll(t, st, &fb)

	NewColorEvaluator(ColorPerSplat, true, 0).Evaluate(st, originView(640, 480, 0.1, 100), &fb)

	got := fb.Projected[0].Color
	want := mgl32.Vec4{0.2, 0.4, 0.6, 0.25}
	if got != want {
		t.Errorf("flat splat must keep its stored color with opacity in alpha: got %v want %v", got, want)
	}
}

func TestEvaluatePaletteMatchesPerSplat(t *testing.T) {
	// Degree-0 coefficients are direction-independent, so the palette's
	// single representative direction must reproduce the per-splat result
	// exactly.
	coeffs := []mgl32.Vec3{{1, -0.5, 0.2}}
	st := loadCloud(t, []splat.Splat{
		shSplat(mgl32.Vec3{-1, 0, -5}, coeffs),
		shSplat(mgl32.Vec3{1, 0, -5}, coeffs),
		shSplat(mgl32.Vec3{0, 1, -5}, []mgl32.Vec3{{-0.3, 0.8, 0.1}}),
	})
	view := originView(640, 480, 0.1, 100)

	var fbSplat, fbPal FrameBuffers
	projectAll(t, st, &fbSplat)
	projectAll(t, st, &fbPal)

	NewColorEvaluator(ColorPerSplat, true, 0).Evaluate(st, view, &fbSplat)
	NewColorEvaluator(ColorPerPalette, true, 16).Evaluate(st, view, &fbPal)

	for i := range fbSplat.Projected {
		a, b := fbSplat.Projected[i].Color, fbPal.Projected[i].Color
		for k := 0; k < 4; k++ {
			if math.Abs(float64(a[k]-b[k])) > 1e-6 {
				t.Fatalf("splat %d: palette color %v differs from per-splat %v", i, b, a)
			}
		}
	}
}

func TestEvaluatePaletteCapOverflow(t *testing.T) {
	// With capacity 1 only the first unique set fits; the rest fall back
	// to per-splat evaluation and still get correct colors.
	st := loadCloud(t, []splat.Splat{
		shSplat(mgl32.Vec3{-1, 0, -5}, []mgl32.Vec3{{0.9, 0, 0}}),
		shSplat(mgl32.Vec3{1, 0, -5}, []mgl32.Vec3{{0, 0.9, 0}}),
	})
	view := originView(640, 480, 0.1, 100)

	var fb FrameBuffers
	projectAll(t, st, &fb)
	NewColorEvaluator(ColorPerPalette, true, 1).Evaluate(st, view, &fb)

	c0, c1 := fb.Projected[0].Color, fb.Projected[1].Color
	if c0.X() <= c0.Y() {
		t.Errorf("first splat should lean red, got %v", c0)
	}
	if c1.Y() <= c1.X() {
		t.Errorf("overflowed splat should still lean green, got %v", c1)
	}
}

func TestEvaluateRebindsOnGeneration(t *testing.T) {
	st := loadCloud(t, []splat.Splat{shSplat(mgl32.Vec3{0, 0, -5}, []mgl32.Vec3{{0.9, 0, 0}})})
	view := originView(640, 480, 0.1, 100)
	e := NewColorEvaluator(ColorPerPalette, true, 16)

	var fb FrameBuffers
	projectAll(t, st, &fb)
	e.Evaluate(st, view, &fb)
	if c := fb.Projected[0].Color; c.X() <= c.Y() {
		t.Fatalf("expected red-leaning color, got %v", c)
	}

	// Replacing the store contents bumps the generation; the evaluator
	// must re-intern instead of serving stale palette entries.
	if _, err := st.Load([]splat.Splat{shSplat(mgl32.Vec3{0, 0, -5}, []mgl32.Vec3{{0, 0.9, 0}})}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	projectAll(t, st, &fb)
	e.Evaluate(st, view, &fb)
	if c := fb.Projected[0].Color; c.Y() <= c.X() {
		t.Errorf("evaluator served a stale palette entry after reload: %v", c)
	}
}

func TestEvaluateSpecializedMatchesBranching(t *testing.T) {
	coeffs := make([]mgl32.Vec3, 9) // degree 2
	for i := range coeffs {
		coeffs[i] = mgl32.Vec3{float32(i) * 0.1, 0.3 - float32(i)*0.05, 0.02 * float32(i)}
	}
	st := loadCloud(t, []splat.Splat{shSplat(mgl32.Vec3{1, 2, -7}, coeffs)})
	view := originView(640, 480, 0.1, 100)

	var fbSpec, fbBranch FrameBuffers
	projectAll(t, st, &fbSpec)
	projectAll(t, st, &fbBranch)
	NewColorEvaluator(ColorPerSplat, true, 0).Evaluate(st, view, &fbSpec)
	NewColorEvaluator(ColorPerSplat, false, 0).Evaluate(st, view, &fbBranch)

	a, b := fbSpec.Projected[0].Color, fbBranch.Projected[0].Color
	for k := 0; k < 4; k++ {
		if math.Abs(float64(a[k]-b[k])) > 1e-5 {
			t.Fatalf("specialized kernel diverges from branching evaluator: %v vs %v", a, b)
		}
	}
}
