// Package core holds the per-frame camera descriptors and view-space math
// shared by the CPU and GPU splat pipelines.
package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// View is one camera descriptor for one frame, as supplied by the input
// layer. Stereo/multi-view rendering passes several of these against the
// same store within a single frame.
type View struct {
	ViewMatrix mgl32.Mat4
	Projection mgl32.Mat4
	Width      uint32
	Height     uint32
	Near       float32
	Far        float32
}

// Perspective builds a View looking from eye toward center with the given
// vertical FOV in degrees.
func Perspective(eye, center, up mgl32.Vec3, fovDeg float32, width, height uint32, near, far float32) View {
	aspect := float32(width) / float32(height)
	return View{
		ViewMatrix: mgl32.LookAtV(eye, center, up),
		Projection: mgl32.Perspective(mgl32.DegToRad(fovDeg), aspect, near, far),
		Width:      width,
		Height:     height,
		Near:       near,
		Far:        far,
	}
}

// TanHalfFov returns the horizontal and vertical half-FOV tangents encoded
// in the projection matrix.
func (v View) TanHalfFov() (tx, ty float32) {
	return 1 / v.Projection.At(0, 0), 1 / v.Projection.At(1, 1)
}

// FocalLengths returns the screen-space focal lengths in pixels.
func (v View) FocalLengths() (fx, fy float32) {
	return float32(v.Width) * 0.5 * v.Projection.At(0, 0),
		float32(v.Height) * 0.5 * v.Projection.At(1, 1)
}

// CameraPosition recovers the eye position from the view matrix.
func (v View) CameraPosition() mgl32.Vec3 {
	return v.ViewMatrix.Inv().Col(3).Vec3()
}

// Forward is the normalized world-space view direction.
func (v View) Forward() mgl32.Vec3 {
	// The third row of a look-at matrix is the negated forward axis.
	return mgl32.Vec3{-v.ViewMatrix.At(2, 0), -v.ViewMatrix.At(2, 1), -v.ViewMatrix.At(2, 2)}.Normalize()
}

// ViewProjection returns projection * view.
func (v View) ViewProjection() mgl32.Mat4 {
	return v.Projection.Mul4(v.ViewMatrix)
}

// Changed reports whether b has moved materially relative to a: the eye
// translated more than posEps, or the forward axis rotated more than
// angEps radians. The sort throttle reuses the previous order when this
// is false.
func Changed(a, b View, posEps, angEps float32) bool {
	if a.Width != b.Width || a.Height != b.Height {
		return true
	}
	if a.CameraPosition().Sub(b.CameraPosition()).Len() > posEps {
		return true
	}
	dot := a.Forward().Dot(b.Forward())
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return float32(math.Acos(float64(dot))) > angEps
}
