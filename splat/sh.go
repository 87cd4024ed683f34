package splat

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxSHDegree is the highest spherical-harmonics band order carried by a
// splat. Degree d uses (d+1)^2 coefficient vectors.
const MaxSHDegree = 3

// Real SH basis constants, bands 0 through 3.
const (
	shC0 = 0.28209479177387814
	shC1 = 0.4886025119029199
)

var shC2 = [5]float32{
	1.0925484305920792,
	-1.0925484305920792,
	0.31539156525252005,
	-1.0925484305920792,
	0.5462742152960396,
}

var shC3 = [7]float32{
	-0.5900435899266435,
	2.890611442640554,
	-0.4570457994644658,
	0.3731763325901154,
	-0.4570457994644658,
	1.445305721320277,
	-0.5900435899266435,
}

// CoefficientsForDegree returns the coefficient-vector count for an SH
// degree: (degree+1)^2.
func CoefficientsForDegree(degree int) int {
	return (degree + 1) * (degree + 1)
}

// DegreeForCoefficients is the inverse mapping. ok is false when count is
// not a valid layout (1, 4, 9 or 16).
func DegreeForCoefficients(count int) (degree int, ok bool) {
	for d := 0; d <= MaxSHDegree; d++ {
		if CoefficientsForDegree(d) == count {
			return d, true
		}
	}
	return 0, false
}

// ValidateLayout reports whether a (degree, coefficient-count) pair is
// consistent.
func ValidateLayout(degree, count int) bool {
	return degree >= 0 && degree <= MaxSHDegree && CoefficientsForDegree(degree) == count
}

// LayoutError describes an SH coefficient set whose length matches no
// degree. It is a load-time validation failure: the splat keeps its flat
// color and SH evaluation is skipped for it.
type LayoutError struct {
	Index int
	Count int
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("splat %d: %d SH coefficients match no degree 0-%d layout", e.Index, e.Count, MaxSHDegree)
}

// Sanitize drops malformed SH coefficient sets in place, leaving the
// affected splats on their flat color. It returns one LayoutError per
// degraded splat; the load itself still succeeds.
func Sanitize(splats []Splat) []*LayoutError {
	var degraded []*LayoutError
	for i := range splats {
		n := len(splats[i].SH)
		if n == 0 {
			continue
		}
		if _, ok := DegreeForCoefficients(n); !ok {
			degraded = append(degraded, &LayoutError{Index: i, Count: n})
			splats[i].SH = nil
		}
	}
	return degraded
}

// Evaluator resolves an SH coefficient set against a view direction.
type Evaluator func(coeffs []mgl32.Vec3, dir mgl32.Vec3) mgl32.Vec3

// EvalSH evaluates view-dependent color with a single code path that
// branches per band. dir must be normalized. Coefficient sets shorter than
// a full band are evaluated up to the bands they cover.
func EvalSH(coeffs []mgl32.Vec3, dir mgl32.Vec3) mgl32.Vec3 {
	if len(coeffs) == 0 {
		return mgl32.Vec3{}
	}
	c := coeffs[0].Mul(shC0)
	if len(coeffs) >= 4 {
		x, y, z := dir.X(), dir.Y(), dir.Z()
		c = c.Add(coeffs[1].Mul(-shC1 * y))
		c = c.Add(coeffs[2].Mul(shC1 * z))
		c = c.Add(coeffs[3].Mul(-shC1 * x))
		if len(coeffs) >= 9 {
			xx, yy, zz := x*x, y*y, z*z
			xy, yz, xz := x*y, y*z, x*z
			c = c.Add(coeffs[4].Mul(shC2[0] * xy))
			c = c.Add(coeffs[5].Mul(shC2[1] * yz))
			c = c.Add(coeffs[6].Mul(shC2[2] * (2*zz - xx - yy)))
			c = c.Add(coeffs[7].Mul(shC2[3] * xz))
			c = c.Add(coeffs[8].Mul(shC2[4] * (xx - yy)))
			if len(coeffs) >= 16 {
				c = c.Add(coeffs[9].Mul(shC3[0] * y * (3*xx - yy)))
				c = c.Add(coeffs[10].Mul(shC3[1] * xy * z))
				c = c.Add(coeffs[11].Mul(shC3[2] * y * (4*zz - xx - yy)))
				c = c.Add(coeffs[12].Mul(shC3[3] * z * (2*zz - 3*xx - 3*yy)))
				c = c.Add(coeffs[13].Mul(shC3[4] * x * (4*zz - xx - yy)))
				c = c.Add(coeffs[14].Mul(shC3[5] * z * (xx - yy)))
				c = c.Add(coeffs[15].Mul(shC3[6] * x * (xx - 3*yy)))
			}
		}
	}
	return clampColor(c.Add(mgl32.Vec3{0.5, 0.5, 0.5}))
}

// EvaluatorForDegree returns a branch-free evaluator compiled for exactly
// one degree. Results match EvalSH up to floating-point rounding.
func EvaluatorForDegree(degree int) Evaluator {
	switch degree {
	case 0:
		return evalSH0
	case 1:
		return evalSH1
	case 2:
		return evalSH2
	default:
		return evalSH3
	}
}

func evalSH0(coeffs []mgl32.Vec3, _ mgl32.Vec3) mgl32.Vec3 {
	c := coeffs[0].Mul(shC0)
	return clampColor(c.Add(mgl32.Vec3{0.5, 0.5, 0.5}))
}

func evalSH1(coeffs []mgl32.Vec3, dir mgl32.Vec3) mgl32.Vec3 {
	x, y, z := dir.X(), dir.Y(), dir.Z()
	c := coeffs[0].Mul(shC0)
	c = c.Add(coeffs[1].Mul(-shC1 * y))
	c = c.Add(coeffs[2].Mul(shC1 * z))
	c = c.Add(coeffs[3].Mul(-shC1 * x))
	return clampColor(c.Add(mgl32.Vec3{0.5, 0.5, 0.5}))
}

func evalSH2(coeffs []mgl32.Vec3, dir mgl32.Vec3) mgl32.Vec3 {
	x, y, z := dir.X(), dir.Y(), dir.Z()
	xx, yy, zz := x*x, y*y, z*z
	xy, yz, xz := x*y, y*z, x*z
	c := coeffs[0].Mul(shC0)
	c = c.Add(coeffs[1].Mul(-shC1 * y))
	c = c.Add(coeffs[2].Mul(shC1 * z))
	c = c.Add(coeffs[3].Mul(-shC1 * x))
	c = c.Add(coeffs[4].Mul(shC2[0] * xy))
	c = c.Add(coeffs[5].Mul(shC2[1] * yz))
	c = c.Add(coeffs[6].Mul(shC2[2] * (2*zz - xx - yy)))
	c = c.Add(coeffs[7].Mul(shC2[3] * xz))
	c = c.Add(coeffs[8].Mul(shC2[4] * (xx - yy)))
	return clampColor(c.Add(mgl32.Vec3{0.5, 0.5, 0.5}))
}

func evalSH3(coeffs []mgl32.Vec3, dir mgl32.Vec3) mgl32.Vec3 {
	x, y, z := dir.X(), dir.Y(), dir.Z()
	xx, yy, zz := x*x, y*y, z*z
	xy, yz, xz := x*y, y*z, x*z
	c := coeffs[0].Mul(shC0)
	c = c.Add(coeffs[1].Mul(-shC1 * y))
	c = c.Add(coeffs[2].Mul(shC1 * z))
	c = c.Add(coeffs[3].Mul(-shC1 * x))
	c = c.Add(coeffs[4].Mul(shC2[0] * xy))
	c = c.Add(coeffs[5].Mul(shC2[1] * yz))
	c = c.Add(coeffs[6].Mul(shC2[2] * (2*zz - xx - yy)))
	c = c.Add(coeffs[7].Mul(shC2[3] * xz))
	c = c.Add(coeffs[8].Mul(shC2[4] * (xx - yy)))
	c = c.Add(coeffs[9].Mul(shC3[0] * y * (3*xx - yy)))
	c = c.Add(coeffs[10].Mul(shC3[1] * xy * z))
	c = c.Add(coeffs[11].Mul(shC3[2] * y * (4*zz - xx - yy)))
	c = c.Add(coeffs[12].Mul(shC3[3] * z * (2*zz - 3*xx - 3*yy)))
	c = c.Add(coeffs[13].Mul(shC3[4] * x * (4*zz - xx - yy)))
	c = c.Add(coeffs[14].Mul(shC3[5] * z * (xx - yy)))
	c = c.Add(coeffs[15].Mul(shC3[6] * x * (xx - 3*yy)))
	return clampColor(c.Add(mgl32.Vec3{0.5, 0.5, 0.5}))
}

func clampColor(c mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		max(c.X(), 0),
		max(c.Y(), 0),
		max(c.Z(), 0),
	}
}
