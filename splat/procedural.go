package splat

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// Procedural test clouds. These stand in for decoded assets in tests and
// the splatview demo; no on-disk format is involved.

// ShellCloud scatters n splats on a sphere shell of the given radius,
// each carrying a degree-1 SH set tinted by its normal.
func ShellCloud(n int, radius float32, seed int64) []Splat {
	rng := rand.New(rand.NewSource(seed))
	splats := make([]Splat, n)
	for i := range splats {
		dir := randomUnit(rng)
		pos := dir.Mul(radius)
		sh := make([]mgl32.Vec3, 4)
		sh[0] = mgl32.Vec3{dir.X()*0.5 + 0.5, dir.Y()*0.5 + 0.5, dir.Z()*0.5 + 0.5}.Sub(mgl32.Vec3{0.5, 0.5, 0.5}).Mul(1 / float32(shC0))
		for b := 1; b < 4; b++ {
			sh[b] = mgl32.Vec3{
				(rng.Float32() - 0.5) * 0.2,
				(rng.Float32() - 0.5) * 0.2,
				(rng.Float32() - 0.5) * 0.2,
			}
		}
		splats[i] = Splat{
			Position: pos,
			Rotation: mgl32.QuatIdent(),
			Scale:    mgl32.Vec3{radius * 0.02, radius * 0.02, radius * 0.005},
			Opacity:  0.6 + rng.Float32()*0.4,
			Color:    mgl32.Vec3{dir.X()*0.5 + 0.5, dir.Y()*0.5 + 0.5, dir.Z()*0.5 + 0.5},
			SH:       sh,
		}
	}
	return splats
}

// BoxCloud fills an axis-aligned box with flat-colored splats.
func BoxCloud(n int, extent mgl32.Vec3, seed int64) []Splat {
	rng := rand.New(rand.NewSource(seed))
	splats := make([]Splat, n)
	for i := range splats {
		pos := mgl32.Vec3{
			(rng.Float32() - 0.5) * extent.X(),
			(rng.Float32() - 0.5) * extent.Y(),
			(rng.Float32() - 0.5) * extent.Z(),
		}
		axis := randomUnit(rng)
		angle := rng.Float32() * 2 * math.Pi
		splats[i] = Splat{
			Position: pos,
			Rotation: mgl32.QuatRotate(angle, axis),
			Scale: mgl32.Vec3{
				0.01 + rng.Float32()*0.05,
				0.01 + rng.Float32()*0.05,
				0.01 + rng.Float32()*0.02,
			},
			Opacity: 0.3 + rng.Float32()*0.7,
			Color: mgl32.Vec3{
				pos.X()/extent.X() + 0.5,
				pos.Y()/extent.Y() + 0.5,
				pos.Z()/extent.Z() + 0.5,
			},
		}
	}
	return splats
}

// SpiralCloud winds n splats along a helix; useful for checking depth
// ordering visually since near and far strands interleave on screen.
func SpiralCloud(n int, turns float32, seed int64) []Splat {
	rng := rand.New(rand.NewSource(seed))
	splats := make([]Splat, n)
	for i := range splats {
		t := float32(i) / float32(n)
		angle := float64(t * turns * 2 * math.Pi)
		r := 0.5 + t*2
		splats[i] = Splat{
			Position: mgl32.Vec3{
				r * float32(math.Cos(angle)),
				(t - 0.5) * 4,
				r * float32(math.Sin(angle)),
			},
			Rotation: mgl32.QuatIdent(),
			Scale:    mgl32.Vec3{0.04, 0.04, 0.04},
			Opacity:  0.8,
			Color: mgl32.Vec3{
				t,
				0.2 + 0.6*rng.Float32(),
				1 - t,
			},
		}
	}
	return splats
}

func randomUnit(rng *rand.Rand) mgl32.Vec3 {
	for {
		v := mgl32.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
		}
		if l := v.Len(); l > 1e-4 && l <= 1 {
			return v.Mul(1 / l)
		}
	}
}
