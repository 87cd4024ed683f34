package render

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/splat3d/splatrt/core"
	"github.com/splat3d/splatrt/splat"
)

func originView(width, height uint32, near, far float32) core.View {
	return core.Perspective(
		mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0},
		60, width, height, near, far,
	)
}

func loadCloud(t *testing.T, splats []splat.Splat) *splat.Store {
	t.Helper()
	st := splat.NewStore()
	if _, err := st.Load(splats); err != nil {
		t.Fatalf("load: %v", err)
	}
	return st
}

func unitSplat(pos mgl32.Vec3, opacity float32) splat.Splat {
	return splat.Splat{
		Position: pos,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{0.1, 0.1, 0.1},
		Opacity:  opacity,
		Color:    mgl32.Vec3{1, 1, 1},
	}
}

func TestProjectCenterAndDepth(t *testing.T) {
	st := loadCloud(t, []splat.Splat{unitSplat(mgl32.Vec3{0, 0, -5}, 1)})
	view := originView(640, 480, 0.1, 100)

	var fb FrameBuffers
	n := Projector{}.Project(st, view, CullConfig{}, &fb)
	if n != 1 {
		t.Fatalf("expected 1 visible splat, got %d", n)
	}
	p := fb.Projected[0]
	if math.Abs(float64(p.Center.X()-320)) > 1 || math.Abs(float64(p.Center.Y()-240)) > 1 {
		t.Errorf("on-axis splat should project to screen center, got %v", p.Center)
	}
	if math.Abs(float64(p.Depth-5)) > 1e-4 {
		t.Errorf("expected depth 5, got %v", p.Depth)
	}
	if fb.Vis[0] != 1 {
		t.Error("visibility mask not set")
	}
}

func TestProjectNearFarInclusive(t *testing.T) {
	view := originView(640, 480, 1, 10)
	tests := []struct {
		name    string
		z       float32
		visible bool
	}{
		{"on near plane", -1, true},
		{"on far plane", -10, true},
		{"inside", -5, true},
		{"in front of near", -0.5, false},
		{"beyond far", -10.5, false},
		{"behind camera", 2, false},
	}
	for _, tc := range tests {
		st := loadCloud(t, []splat.Splat{unitSplat(mgl32.Vec3{0, 0, tc.z}, 1)})
		var fb FrameBuffers
		n := Projector{}.Project(st, view, CullConfig{}, &fb)
		if (n == 1) != tc.visible {
			t.Errorf("%s (z=%v): expected visible=%v, got %d visible", tc.name, tc.z, tc.visible, n)
		}
	}
}

func TestProjectDegenerateCovariance(t *testing.T) {
	// Zero scale collapses the covariance; projection must clamp, not
	// divide by zero.
	sp := splat.Splat{
		Position: mgl32.Vec3{0, 0, -5},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{0, 0, 0},
		Opacity:  1,
		Color:    mgl32.Vec3{1, 0, 0},
	}
	st := loadCloud(t, []splat.Splat{sp})
	var fb FrameBuffers
	n := Projector{}.Project(st, originView(640, 480, 0.1, 100), CullConfig{}, &fb)
	if n != 1 {
		t.Fatalf("degenerate splat should stay visible, got %d", n)
	}
	p := fb.Projected[0]
	for _, v := range []float32{p.ConicA, p.ConicB, p.ConicC, p.Radius, p.Axis1.X(), p.Axis2.Y()} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("degenerate covariance produced non-finite footprint: %+v", p)
		}
	}
	if p.Radius <= 0 {
		t.Errorf("clamped footprint must keep a positive radius, got %v", p.Radius)
	}
}

func TestInkCullingDepthAdjusted(t *testing.T) {
	// A faint splat (opacity 0.001, covariance determinant 100) against a
	// base threshold of 1.0: culled at distance 50, kept at distance 1
	// where the depth-adjusted threshold is near zero.
	const base, zref = 1.0, 100.0
	ink := Ink(0.001, 100)

	if ink >= CullThreshold(base, 50, zref) {
		t.Error("faint distant splat must fall below the depth-adjusted threshold")
	}
	if ink < CullThreshold(base, 1, zref) {
		t.Error("the same splat near the camera must survive the near-zero threshold")
	}
}

func TestCullThresholdMonotonic(t *testing.T) {
	prev := float32(0)
	for depth := float32(1); depth < 200; depth += 1 {
		th := CullThreshold(1, depth, 100)
		if th < prev {
			t.Fatalf("threshold must be monotonic in depth: f(%v)=%v < %v", depth, th, prev)
		}
		prev = th
	}
}

func TestCullingConservative(t *testing.T) {
	// No splat whose ink exceeds the active threshold may be excluded.
	cloud := splat.BoxCloud(500, mgl32.Vec3{4, 4, 4}, 5)
	for i := range cloud {
		cloud[i].Position = cloud[i].Position.Add(mgl32.Vec3{0, 0, -8})
		cloud[i].Opacity = 1 // high ink everywhere
	}
	st := loadCloud(t, cloud)
	view := originView(640, 480, 0.1, 100)
	cull := CullConfig{InkThreshold: 0.001, DepthReference: 100}

	var fb FrameBuffers
	Projector{}.Project(st, view, cull, &fb)

	planes := core.ExtractFrustum(view.ViewProjection())
	for i := range cloud {
		inFrustum := core.SphereInFrustum(cloud[i].Position, 0, planes)
		if inFrustum && fb.Vis[i] == 0 {
			t.Fatalf("splat %d at %v is in frustum with full opacity but was culled", i, cloud[i].Position)
		}
	}
}

func TestProjectOrientedExtent(t *testing.T) {
	// A splat stretched along X must report a dominant axis near the
	// screen X direction, much longer than the secondary axis.
	sp := splat.Splat{
		Position: mgl32.Vec3{0, 0, -5},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1.0, 0.05, 0.05},
		Opacity:  1,
		Color:    mgl32.Vec3{1, 1, 1},
	}
	st := loadCloud(t, []splat.Splat{sp})
	var fb FrameBuffers
	if n := (Projector{}).Project(st, originView(640, 480, 0.1, 100), CullConfig{}, &fb); n != 1 {
		t.Fatal("splat should be visible")
	}
	p := fb.Projected[0]
	if p.Axis1.Len() < 3*p.Axis2.Len() {
		t.Errorf("elongated splat should have anisotropic axes, got %v and %v", p.Axis1.Len(), p.Axis2.Len())
	}
	if math.Abs(float64(p.Axis1.Normalize().Y())) > 0.1 {
		t.Errorf("dominant axis should align with screen X, got %v", p.Axis1)
	}
}

func TestProjectModelFrustumSkip(t *testing.T) {
	// A whole model behind the camera is skipped without per-splat work;
	// its mask must still read invisible.
	behind := splat.BoxCloud(50, mgl32.Vec3{1, 1, 1}, 7)
	for i := range behind {
		behind[i].Position = behind[i].Position.Add(mgl32.Vec3{0, 0, 50})
	}
	st := loadCloud(t, behind)
	var fb FrameBuffers
	if n := (Projector{}).Project(st, originView(640, 480, 0.1, 100), CullConfig{}, &fb); n != 0 {
		t.Fatalf("expected no visible splats, got %d", n)
	}
	for i, v := range fb.Vis {
		if v != 0 {
			t.Fatalf("splat %d marked visible in a culled model", i)
		}
	}
}

func TestMaskOrderDropsInvisibleIndices(t *testing.T) {
	var fb FrameBuffers
	fb.ensure(4)
	fb.Vis[0] = 1
	fb.Vis[2] = 1

	// 9 is out of range for this frame entirely (store shrank between
	// frames); 1 and 3 were projected by an earlier frame on this slot.
	got := fb.MaskOrder([]uint32{3, 2, 1, 0, 9})
	want := []uint32{2, 0}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
