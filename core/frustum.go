package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ExtractFrustum extracts the 6 planes of the frustum from a
// view-projection matrix. Order: Left, Right, Bottom, Top, Near, Far.
// Each plane is Ax + By + Cz + D = 0 with the normal pointing inward.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4

	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(i, 0), vp.At(i, 1), vp.At(i, 2), vp.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[0] = r3.Add(r0) // left
	planes[1] = r3.Sub(r0) // right
	planes[2] = r3.Add(r1) // bottom
	planes[3] = r3.Sub(r1) // top
	planes[4] = r3.Add(r2) // near
	planes[5] = r3.Sub(r2) // far

	for i := range planes {
		length := float32(math.Sqrt(float64(
			planes[i][0]*planes[i][0] +
				planes[i][1]*planes[i][1] +
				planes[i][2]*planes[i][2])))
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// SphereInFrustum reports whether a bounding sphere intersects the
// frustum. Spheres touching a plane count as inside (inclusive boundary),
// so whole-model culling stays conservative.
func SphereInFrustum(center mgl32.Vec3, radius float32, planes [6]mgl32.Vec4) bool {
	p := center.Vec4(1)
	for i := range planes {
		if planes[i].Dot(p) < -radius {
			return false
		}
	}
	return true
}
