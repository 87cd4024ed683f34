package render

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// disc builds a circular footprint centered at (cx, cy) with unit
// variance and the given color.
func disc(cx, cy, depth float32, color mgl32.Vec4) Projected {
	return Projected{
		Center: mgl32.Vec2{cx, cy},
		ConicA: 1, ConicB: 0, ConicC: 1,
		Depth:  depth,
		Axis1:  mgl32.Vec2{1, 0},
		Axis2:  mgl32.Vec2{0, 1},
		Radius: BoundsRadius,
		Color:  color,
	}
}

func TestCompositeSingleSplat(t *testing.T) {
	target := NewTarget(32, 32)
	target.Clear(mgl32.Vec4{0, 0, 0, 0})
	// Centered on a pixel center so the peak lands exactly on At(16, 16).
	splats := []Projected{disc(16.5, 16.5, 5, mgl32.Vec4{1, 0, 0, 1})}

	Compositor{Mode: CompositeSorted}.Composite(target, []uint32{0}, splats)

	center := target.At(16, 16)
	if center.X() < 0.9 || center.W() < 0.9 {
		t.Errorf("center pixel should be nearly opaque red, got %v", center)
	}
	corner := target.At(0, 0)
	if corner.X() != 0 || corner.W() != 0 {
		t.Errorf("corner outside the footprint must stay clear, got %v", corner)
	}
	// Falloff: halfway out is dimmer than the center.
	edge := target.At(18, 16)
	if edge.X() >= center.X() {
		t.Errorf("Gaussian falloff missing: edge %v vs center %v", edge.X(), center.X())
	}
}

func TestCompositeBackToFrontOver(t *testing.T) {
	target := NewTarget(32, 32)
	target.Clear(mgl32.Vec4{0, 0, 0, 0})
	splats := []Projected{
		disc(16, 16, 10, mgl32.Vec4{1, 0, 0, 0.8}), // far, red
		disc(16, 16, 2, mgl32.Vec4{0, 1, 0, 0.8}),  // near, green
	}

	// Back-to-front: far first, near last. The near green splat must
	// dominate the center.
	Compositor{Mode: CompositeSorted}.Composite(target, []uint32{0, 1}, splats)
	c := target.At(16, 16)
	if c.Y() <= c.X() {
		t.Errorf("near splat must dominate after over-compositing, got %v", c)
	}

	// Drawing in the wrong order flips the outcome, which is exactly why
	// the sorted order matters.
	wrong := NewTarget(32, 32)
	wrong.Clear(mgl32.Vec4{0, 0, 0, 0})
	Compositor{Mode: CompositeSorted}.Composite(wrong, []uint32{1, 0}, splats)
	w := wrong.At(16, 16)
	if w.X() <= w.Y() {
		t.Errorf("front-to-back order should let the far splat dominate, got %v", w)
	}
}

func TestCompositeIdempotent(t *testing.T) {
	splats := []Projected{
		disc(10, 10, 5, mgl32.Vec4{0.2, 0.4, 0.8, 0.7}),
		disc(14, 12, 3, mgl32.Vec4{0.9, 0.1, 0.1, 0.5}),
	}
	render := func() []float32 {
		target := NewTarget(24, 24)
		target.Clear(mgl32.Vec4{0, 0, 0, 0})
		Compositor{Mode: CompositeSorted}.Composite(target, []uint32{0, 1}, splats)
		out := make([]float32, len(target.Pix))
		copy(out, target.Pix)
		return out
	}
	a, b := render(), render()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("repeated composite differs at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestCompositeDitheredOrderIndependent(t *testing.T) {
	splats := []Projected{
		disc(16, 16, 10, mgl32.Vec4{1, 0, 0, 1}),
		disc(16, 16, 2, mgl32.Vec4{0, 1, 0, 1}),
	}
	render := func(order []uint32) *Target {
		target := NewTarget(32, 32)
		target.EnableDepth()
		target.Clear(mgl32.Vec4{0, 0, 0, 0})
		Compositor{Mode: CompositeDithered}.Composite(target, order, splats)
		return target
	}
	a := render([]uint32{0, 1})
	b := render([]uint32{1, 0})
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("dithered compositing must not depend on draw order (pixel %d)", i)
		}
	}
	// The near splat wins the depth test wherever both were accepted.
	c := a.At(16, 16)
	if c.Y() < c.X() {
		t.Errorf("nearest splat should win the depth race at the center, got %v", c)
	}
}

func TestCompositeDitheredRejectsFaintFragments(t *testing.T) {
	target := NewTarget(32, 32)
	target.EnableDepth()
	target.Clear(mgl32.Vec4{0, 0, 0, 0})
	faint := []Projected{disc(16, 16, 5, mgl32.Vec4{1, 1, 1, 0.01})}
	Compositor{Mode: CompositeDithered}.Composite(target, []uint32{0}, faint)

	written := 0
	for i := 3; i < len(target.Pix); i += 4 {
		if target.Pix[i] > 0 {
			written++
		}
	}
	// Stochastic acceptance at alpha 0.01 keeps roughly 1% of covered
	// pixels; anything close to full coverage means the threshold test
	// is broken.
	if written > 20 {
		t.Errorf("alpha 0.01 splat wrote %d opaque pixels", written)
	}
}

func TestTargetImageConversion(t *testing.T) {
	target := NewTarget(4, 4)
	target.Clear(mgl32.Vec4{0.5, 0, 1, 1})
	img := target.Image()
	r, g, b, a := img.At(2, 2).RGBA()
	if r>>8 != 128 || g != 0 || b>>8 != 255 || a>>8 != 255 {
		t.Errorf("unexpected converted pixel: %d %d %d %d", r>>8, g>>8, b>>8, a>>8)
	}
}
