// Package render implements the CPU splat pipeline: projection into
// screen-space footprints, view-dependent color resolution, compositing,
// and the frame scheduler that bounds in-flight frames.
package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/splat3d/splatrt/core"
	"github.com/splat3d/splatrt/splat"
)

const (
	// BoundsRadius is the Gaussian cutoff in standard deviations; beyond
	// 3 sigma the contribution is below 1/255.
	BoundsRadius        = 3.0
	BoundsRadiusSquared = BoundsRadius * BoundsRadius

	// minDeterminant keeps degenerate 2D covariances invertible.
	minDeterminant = 1e-6
	// minEigenvalue clamps collapsed footprints to a sliver instead of a
	// division by zero.
	minEigenvalue = 0.1
	// lowPass widens every footprint slightly so sub-pixel splats still
	// touch at least one sample.
	lowPass = 0.3
)

// Projected is one splat's ephemeral screen-space footprint. Center is in
// pixel coordinates (y down), the conic is the inverse 2D covariance
// (ax^2 + 2bxy + cy^2), the axes are the 1-sigma eigenvectors and Radius
// the conservative screen bound. Owned by the producing frame slot only.
type Projected struct {
	Center                 mgl32.Vec2
	ConicA, ConicB, ConicC float32
	Depth                  float32
	Axis1, Axis2           mgl32.Vec2
	Radius                 float32
	Color                  mgl32.Vec4
}

// FrameBuffers is the per-slot transient state: footprints, visibility
// mask and depths parallel to the store arrays, plus the compact visible
// index list handed to the sort engine. Recycled with its slot, never
// shared across slots.
type FrameBuffers struct {
	Projected []Projected
	Vis       []uint8
	Depths    []float32
	Visible   []uint32

	order []uint32
}

func (fb *FrameBuffers) ensure(n int) {
	if cap(fb.Projected) < n {
		fb.Projected = make([]Projected, n)
		fb.Vis = make([]uint8, n)
		fb.Depths = make([]float32, n)
	}
	fb.Projected = fb.Projected[:n]
	fb.Vis = fb.Vis[:n]
	fb.Depths = fb.Depths[:n]
	fb.Visible = fb.Visible[:0]
}

// MaskOrder filters an order down to the splats this frame actually
// projected. A throttled engine may hand back last frame's permutation,
// and an index that fell out of visibility since then would otherwise
// read a recycled slot's stale footprint. The returned slice is owned by
// the frame buffers and valid until the next call.
func (fb *FrameBuffers) MaskOrder(order []uint32) []uint32 {
	fb.order = fb.order[:0]
	for _, idx := range order {
		if int(idx) < len(fb.Vis) && fb.Vis[idx] != 0 {
			fb.order = append(fb.order, idx)
		}
	}
	return fb.order
}

// CullConfig holds the opacity-aware culling knobs.
type CullConfig struct {
	// InkThreshold is the base contribution cutoff, compared against
	// opacity/sqrt(det(cov2D)).
	InkThreshold float32
	// DepthReference is the distance at which the depth-adjusted
	// threshold reaches InkThreshold; closer splats see a near-zero
	// threshold, farther ones a quadratically larger one.
	DepthReference float32
}

// Ink is a splat's total screen contribution given its projected
// covariance determinant.
func Ink(opacity, det float32) float32 {
	if det < minDeterminant {
		det = minDeterminant
	}
	return opacity / float32(math.Sqrt(float64(det)))
}

// CullThreshold tightens the ink cutoff quadratically with distance, so
// distant low-contribution splats are dropped more aggressively than
// near ones. Any monotonic curve keeps culling conservative; this one
// passes through (DepthReference, base).
func CullThreshold(base, depth, depthReference float32) float32 {
	if depthReference <= 0 {
		return base
	}
	r := depth / depthReference
	return base * r * r
}

// Projector maps world-space splats to screen-space footprints and the
// per-frame visibility mask.
type Projector struct{}

// Project runs the single coalesced pass over the store for one view:
// each splat is read once and its footprint, visibility byte and depth
// written once. Splitting culling or bounds computation into separate
// passes over the same data would double memory traffic, which is the
// pipeline's bottleneck at millions of splats. Returns the visible count.
func (Projector) Project(st *splat.Store, view core.View, cull CullConfig, fb *FrameBuffers) int {
	positions, covariances, opacities, _, _ := st.Snapshot()
	fb.ensure(len(positions))

	fx, fy := view.FocalLengths()
	tanX, tanY := view.TanHalfFov()
	limX, limY := 1.3*tanX, 1.3*tanY
	vm := view.ViewMatrix
	w3 := vm.Mat3()
	planes := core.ExtractFrustum(view.ViewProjection())
	halfW := float32(view.Width) * 0.5
	halfH := float32(view.Height) * 0.5

	for _, model := range st.Models() {
		if !core.SphereInFrustum(model.Center, model.Radius, planes) {
			for i := model.Offset; i < model.Offset+model.Count; i++ {
				fb.Vis[i] = 0
			}
			continue
		}

		for i := model.Offset; i < model.Offset+model.Count; i++ {
			fb.Vis[i] = 0
			p := positions[i]
			vp := vm.Mul4x1(p.Vec4(1))
			depth := -vp.Z()
			// Splats exactly on a clip plane count as visible.
			if depth < view.Near || depth > view.Far {
				continue
			}

			// Project the 3D covariance through the local affine
			// approximation J*W of the perspective map, with the
			// view-space position clamped to the frustum cone so the
			// Jacobian stays bounded at the screen edges.
			tx := clampf(vp.X()/vp.Z(), -limX, limX) * vp.Z()
			ty := clampf(vp.Y()/vp.Z(), -limY, limY) * vp.Z()
			tz := vp.Z()
			invZ := 1 / tz
			invZ2 := invZ * invZ

			j := mgl32.Mat3{
				fx * invZ, 0, 0,
				0, fy * invZ, 0,
				-fx * tx * invZ2, -fy * ty * invZ2, 0,
			}
			t := j.Mul3(w3)
			sigma := covariances[i].Mat3()
			cov2 := t.Mul3(sigma).Mul3(t.Transpose())

			a := cov2.At(0, 0) + lowPass
			b := cov2.At(0, 1)
			c := cov2.At(1, 1) + lowPass

			det := a*c - b*b
			if det < minDeterminant {
				det = minDeterminant
			}
			if Ink(opacities[i], det) < CullThreshold(cull.InkThreshold, depth, cull.DepthReference) {
				continue
			}

			// Eigen decomposition for the oriented extent; circular
			// bounds over-cull elongated splats.
			mid := 0.5 * (a + c)
			r := float32(math.Sqrt(math.Max(float64(mid*mid-det), 0)))
			l1 := mid + r
			l2 := mid - r
			if l1 < minEigenvalue {
				l1 = minEigenvalue
			}
			if l2 < minEigenvalue {
				l2 = minEigenvalue
			}
			var v1 mgl32.Vec2
			if b != 0 {
				v1 = mgl32.Vec2{b, l1 - a}.Normalize()
			} else if a >= c {
				v1 = mgl32.Vec2{1, 0}
			} else {
				v1 = mgl32.Vec2{0, 1}
			}
			v2 := mgl32.Vec2{-v1.Y(), v1.X()}
			s1 := float32(math.Sqrt(float64(l1)))
			s2 := float32(math.Sqrt(float64(l2)))

			clip := view.Projection.Mul4x1(vp)
			invW := 1 / clip.W()
			cx := (clip.X()*invW*0.5 + 0.5) * 2 * halfW
			cy := (1 - (clip.Y()*invW*0.5 + 0.5)) * 2 * halfH

			invDet := 1 / det
			fb.Projected[i] = Projected{
				Center: mgl32.Vec2{cx, cy},
				ConicA: c * invDet,
				ConicB: -b * invDet,
				ConicC: a * invDet,
				Depth:  depth,
				Axis1:  v1.Mul(s1),
				Axis2:  v2.Mul(s2),
				Radius: BoundsRadius * s1,
			}
			fb.Vis[i] = 1
			fb.Depths[i] = depth
			fb.Visible = append(fb.Visible, uint32(i))
		}
	}
	return len(fb.Visible)
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
