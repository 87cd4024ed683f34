package splat

import (
	"errors"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// ModelID identifies one loaded splat model inside a Store.
type ModelID string

func makeModelID() ModelID { return ModelID(uuid.NewString()) }

// ErrEmptySplatSet is returned when Load or Add receives no splats.
var ErrEmptySplatSet = errors.New("splat: empty splat set")

// Model is one contiguous span of the Store's arrays, with a bounding
// sphere for coarse frustum culling.
type Model struct {
	ID     ModelID
	Offset int
	Count  int
	Center mgl32.Vec3
	Radius float32
}

// Store owns the resident splat arrays. Layout is structure-of-arrays so
// the projector streams each attribute once per frame. The Store is
// read-only while frames are in flight; Load and Add are the only writers
// and bump the generation counter, which invalidates any cached sort
// order downstream.
type Store struct {
	mu sync.RWMutex

	positions   []mgl32.Vec3
	covariances []Covariance
	opacities   []float32
	colors      []mgl32.Vec3
	sh          [][]mgl32.Vec3

	models     []Model
	generation uint64
}

func NewStore() *Store {
	return &Store{}
}

// Load replaces the entire store contents with one model. Malformed SH
// sets must have been dropped via Sanitize beforehand; Load trusts its
// input.
func (s *Store) Load(splats []Splat) (ModelID, error) {
	if len(splats) == 0 {
		return "", ErrEmptySplatSet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = s.positions[:0]
	s.covariances = s.covariances[:0]
	s.opacities = s.opacities[:0]
	s.colors = s.colors[:0]
	s.sh = s.sh[:0]
	s.models = s.models[:0]
	return s.appendLocked(splats), nil
}

// Add appends one model, keeping existing ones resident.
func (s *Store) Add(splats []Splat) (ModelID, error) {
	if len(splats) == 0 {
		return "", ErrEmptySplatSet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(splats), nil
}

func (s *Store) appendLocked(splats []Splat) ModelID {
	offset := len(s.positions)
	bmin := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	bmax := mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
	var maxExtent float32

	for i := range splats {
		sp := &splats[i]
		s.positions = append(s.positions, sp.Position)
		cov := sp.ResolvedCovariance()
		s.covariances = append(s.covariances, cov)
		// 3 sigma along any axis is bounded by 3*sqrt(trace).
		if e := 3 * float32(math.Sqrt(float64(cov[0]+cov[3]+cov[5]))); e > maxExtent {
			maxExtent = e
		}
		s.opacities = append(s.opacities, sp.Opacity)
		s.colors = append(s.colors, sp.Color)
		if len(sp.SH) > 0 {
			coeffs := make([]mgl32.Vec3, len(sp.SH))
			copy(coeffs, sp.SH)
			s.sh = append(s.sh, coeffs)
		} else {
			s.sh = append(s.sh, nil)
		}
		p := sp.Position
		bmin = mgl32.Vec3{min(bmin.X(), p.X()), min(bmin.Y(), p.Y()), min(bmin.Z(), p.Z())}
		bmax = mgl32.Vec3{max(bmax.X(), p.X()), max(bmax.Y(), p.Y()), max(bmax.Z(), p.Z())}
	}

	// Pad the center sphere by the widest splat footprint so coarse
	// culling never drops a visible tail.
	center := bmin.Add(bmax).Mul(0.5)
	radius := bmax.Sub(center).Len() + maxExtent

	m := Model{
		ID:     makeModelID(),
		Offset: offset,
		Count:  len(splats),
		Center: center,
		Radius: radius,
	}
	s.models = append(s.models, m)
	s.generation++
	return m.ID
}

// Len returns the total resident splat count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Generation increments on every Load/Add. Cached per-frame state keyed
// on it (sort orders, palette bindings) must be rebuilt when it moves.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Models returns the resident model spans in load order.
func (s *Store) Models() []Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Model, len(s.models))
	copy(out, s.models)
	return out
}

// Snapshot gives the renderer direct read access to the attribute arrays
// for one frame. The slices alias Store memory and must not be retained
// past the frame or written to; the Store stays read-only while frames
// are in flight (the scheduler serializes loads behind slot draining).
func (s *Store) Snapshot() (positions []mgl32.Vec3, covariances []Covariance, opacities []float32, colors []mgl32.Vec3, sh [][]mgl32.Vec3) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions, s.covariances, s.opacities, s.colors, s.sh
}
