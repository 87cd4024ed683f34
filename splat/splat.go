// Package splat holds the resident splat data model: individual Gaussians,
// their spherical-harmonics color layout, the Store that owns the loaded
// arrays, and the palette used to share coefficient sets between splats.
package splat

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Covariance is a symmetric 3x3 matrix stored as its upper triangle:
// xx, xy, xz, yy, yz, zz.
type Covariance [6]float32

// Splat is one anisotropic 3D Gaussian as delivered by a decoding layer.
// Shape is given either as Rotation+Scale or as a precomputed Covariance
// (HasCovariance selects which). Color is the flat/DC color; SH, when
// non-nil, carries 1, 4, 9 or 16 coefficient vectors for view-dependent
// evaluation.
type Splat struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	HasCovariance bool
	Covariance    Covariance

	Opacity float32
	Color   mgl32.Vec3
	SH      []mgl32.Vec3
}

// CovarianceFromTransform builds the world-space covariance R*S*S^T*R^T
// from a unit rotation quaternion and per-axis standard deviations.
func CovarianceFromTransform(rotation mgl32.Quat, scale mgl32.Vec3) Covariance {
	r := rotation.Normalize().Mat4().Mat3()
	s := mgl32.Diag3(scale)
	m := r.Mul3(s)
	sigma := m.Mul3(m.Transpose())
	return Covariance{
		sigma.At(0, 0), sigma.At(0, 1), sigma.At(0, 2),
		sigma.At(1, 1), sigma.At(1, 2),
		sigma.At(2, 2),
	}
}

// Mat3 expands the packed upper triangle into a full symmetric matrix.
func (c Covariance) Mat3() mgl32.Mat3 {
	return mgl32.Mat3{
		c[0], c[1], c[2],
		c[1], c[3], c[4],
		c[2], c[4], c[5],
	}
}

// ResolvedCovariance returns the splat's covariance, deriving it from the
// rotation/scale encoding when no precomputed matrix is present.
func (s *Splat) ResolvedCovariance() Covariance {
	if s.HasCovariance {
		return s.Covariance
	}
	return CovarianceFromTransform(s.Rotation, s.Scale)
}
