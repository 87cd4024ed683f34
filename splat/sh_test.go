package splat

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestCoefficientsForDegree(t *testing.T) {
	expected := map[int]int{0: 1, 1: 4, 2: 9, 3: 16}
	for degree, count := range expected {
		if got := CoefficientsForDegree(degree); got != count {
			t.Errorf("degree %d: expected %d coefficients, got %d", degree, count, got)
		}
		back, ok := DegreeForCoefficients(count)
		if !ok || back != degree {
			t.Errorf("count %d: expected degree %d, got %d (ok=%v)", count, degree, back, ok)
		}
	}
}

func TestValidateLayout(t *testing.T) {
	tests := []struct {
		degree, count int
		valid         bool
	}{
		{0, 1, true},
		{1, 4, true},
		{2, 9, true},
		{3, 16, true},
		{0, 4, false},
		{1, 1, false},
		{2, 16, false},
		{3, 9, false},
		{1, 5, false},
		{-1, 1, false},
		{4, 25, false},
	}
	for _, tc := range tests {
		if got := ValidateLayout(tc.degree, tc.count); got != tc.valid {
			t.Errorf("ValidateLayout(%d, %d): expected %v, got %v", tc.degree, tc.count, tc.valid, got)
		}
	}
}

func TestSanitizeDropsMismatchedSH(t *testing.T) {
	splats := []Splat{
		{SH: make([]mgl32.Vec3, 4)},
		{SH: make([]mgl32.Vec3, 5)}, // invalid
		{SH: nil},                   // flat color, fine
		{SH: make([]mgl32.Vec3, 16)},
		{SH: make([]mgl32.Vec3, 2)}, // invalid
	}
	degraded := Sanitize(splats)
	if len(degraded) != 2 {
		t.Fatalf("expected 2 degraded splats, got %d", len(degraded))
	}
	if degraded[0].Index != 1 || degraded[1].Index != 4 {
		t.Errorf("unexpected degraded indices: %d, %d", degraded[0].Index, degraded[1].Index)
	}
	if splats[1].SH != nil || splats[4].SH != nil {
		t.Error("degraded splats should have SH dropped")
	}
	if splats[0].SH == nil || splats[3].SH == nil {
		t.Error("valid SH sets must survive Sanitize")
	}
}

func TestSpecializedMatchesBranching(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for degree := 0; degree <= MaxSHDegree; degree++ {
		coeffs := make([]mgl32.Vec3, CoefficientsForDegree(degree))
		for i := range coeffs {
			coeffs[i] = mgl32.Vec3{
				rng.Float32()*2 - 1,
				rng.Float32()*2 - 1,
				rng.Float32()*2 - 1,
			}
		}
		eval := EvaluatorForDegree(degree)
		for trial := 0; trial < 32; trial++ {
			dir := randomUnit(rng)
			a := EvalSH(coeffs, dir)
			b := eval(coeffs, dir)
			for axis := 0; axis < 3; axis++ {
				if diff := math.Abs(float64(a[axis] - b[axis])); diff > 1e-5 {
					t.Fatalf("degree %d: branching %v vs specialized %v differ by %v", degree, a, b, diff)
				}
			}
		}
	}
}

func TestEvalSHDegreeZeroIgnoresDirection(t *testing.T) {
	coeffs := []mgl32.Vec3{{0.4, -0.2, 0.9}}
	a := EvalSH(coeffs, mgl32.Vec3{1, 0, 0})
	b := EvalSH(coeffs, mgl32.Vec3{0, 0, -1})
	if a != b {
		t.Errorf("degree-0 color must be view independent: %v vs %v", a, b)
	}
}

func TestEvalSHNonNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	coeffs := make([]mgl32.Vec3, 16)
	for i := range coeffs {
		coeffs[i] = mgl32.Vec3{rng.Float32()*4 - 2, rng.Float32()*4 - 2, rng.Float32()*4 - 2}
	}
	for trial := 0; trial < 64; trial++ {
		c := EvalSH(coeffs, randomUnit(rng))
		if c.X() < 0 || c.Y() < 0 || c.Z() < 0 {
			t.Fatalf("evaluated color has negative channel: %v", c)
		}
	}
}
