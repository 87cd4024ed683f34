package splat

import (
	"hash/maphash"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// PaletteEntry is one unique SH coefficient set plus the color resolved
// for it in the current frame.
type PaletteEntry struct {
	Coeffs []mgl32.Vec3
	Color  mgl32.Vec3
}

// Palette deduplicates SH coefficient sets so view-dependent color is
// evaluated once per unique set instead of once per splat. Entries are
// keyed by coefficient content, never by splat index. The entry count is
// capped; once full, Intern rejects new sets and callers fall back to
// per-splat evaluation for those.
type Palette struct {
	capacity int
	seed     maphash.Seed
	buckets  map[uint64][]int
	entries  []PaletteEntry
}

func NewPalette(capacity int) *Palette {
	return &Palette{
		capacity: capacity,
		seed:     maphash.MakeSeed(),
		buckets:  make(map[uint64][]int),
	}
}

// Intern returns the entry index for a coefficient set, adding it if it is
// new. ok is false when the set is absent and the palette is full.
func (p *Palette) Intern(coeffs []mgl32.Vec3) (index int, ok bool) {
	h := p.hash(coeffs)
	for _, idx := range p.buckets[h] {
		if coeffsEqual(p.entries[idx].Coeffs, coeffs) {
			return idx, true
		}
	}
	if len(p.entries) >= p.capacity {
		return 0, false
	}
	idx := len(p.entries)
	stored := make([]mgl32.Vec3, len(coeffs))
	copy(stored, coeffs)
	p.entries = append(p.entries, PaletteEntry{Coeffs: stored})
	p.buckets[h] = append(p.buckets[h], idx)
	return idx, true
}

// Resolve evaluates every entry against one representative view direction.
func (p *Palette) Resolve(dir mgl32.Vec3, eval Evaluator) {
	for i := range p.entries {
		p.entries[i].Color = eval(p.entries[i].Coeffs, dir)
	}
}

// Color returns the frame color resolved for entry i.
func (p *Palette) Color(i int) mgl32.Vec3 { return p.entries[i].Color }

func (p *Palette) Len() int      { return len(p.entries) }
func (p *Palette) Capacity() int { return p.capacity }

// Reset drops all entries but keeps allocated capacity.
func (p *Palette) Reset() {
	p.entries = p.entries[:0]
	clear(p.buckets)
}

func (p *Palette) hash(coeffs []mgl32.Vec3) uint64 {
	var h maphash.Hash
	h.SetSeed(p.seed)
	var buf [4]byte
	for _, c := range coeffs {
		for _, f := range c {
			bits := math.Float32bits(f)
			buf[0] = byte(bits)
			buf[1] = byte(bits >> 8)
			buf[2] = byte(bits >> 16)
			buf[3] = byte(bits >> 24)
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}

func coeffsEqual(a, b []mgl32.Vec3) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
