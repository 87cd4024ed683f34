package render

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CompositeMode selects how overlapping splats are resolved.
type CompositeMode int

const (
	// CompositeSorted blends back-to-front with "over" alpha; requires a
	// depth-sorted order.
	CompositeSorted CompositeMode = iota
	// CompositeDithered accepts or rejects each splat per pixel against
	// a Bayer threshold, writing opaque fragments resolved by depth test.
	// Order-independent; noisy without temporal accumulation.
	CompositeDithered
)

// Target is a float RGBA accumulation buffer with an optional depth
// plane. Pix holds premultiplied RGBA, 4 floats per pixel, row-major.
type Target struct {
	Width  int
	Height int
	Pix    []float32
	Depth  []float32
}

func NewTarget(width, height int) *Target {
	return &Target{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*4),
	}
}

// EnableDepth attaches a depth plane; dithered compositing needs one.
// A fresh plane starts cleared to +Inf so the first fragment at a pixel
// always wins.
func (t *Target) EnableDepth() {
	if t.Depth == nil {
		t.Depth = make([]float32, t.Width*t.Height)
		for i := range t.Depth {
			t.Depth[i] = float32(math.Inf(1))
		}
	}
}

// Clear fills the target with a premultiplied color and resets depth.
func (t *Target) Clear(c mgl32.Vec4) {
	for i := 0; i < len(t.Pix); i += 4 {
		t.Pix[i+0] = c.X()
		t.Pix[i+1] = c.Y()
		t.Pix[i+2] = c.Z()
		t.Pix[i+3] = c.W()
	}
	for i := range t.Depth {
		t.Depth[i] = float32(math.Inf(1))
	}
}

// At returns the premultiplied RGBA at a pixel.
func (t *Target) At(x, y int) mgl32.Vec4 {
	i := (y*t.Width + x) * 4
	return mgl32.Vec4{t.Pix[i], t.Pix[i+1], t.Pix[i+2], t.Pix[i+3]}
}

// Image converts the accumulation buffer to an 8-bit image.
func (t *Target) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	for i := 0; i < len(t.Pix); i += 4 {
		o := i
		img.Pix[o+0] = toByte(t.Pix[i+0])
		img.Pix[o+1] = toByte(t.Pix[i+1])
		img.Pix[o+2] = toByte(t.Pix[i+2])
		img.Pix[o+3] = toByte(t.Pix[i+3])
	}
	return img
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// 8x8 Bayer matrix, normalized to [0,1). Ordered dithering reads better
// under temporal accumulation than hash noise.
var bayer8 = [64]float32{
	0, 32, 8, 40, 2, 34, 10, 42,
	48, 16, 56, 24, 50, 18, 58, 26,
	12, 44, 4, 36, 14, 46, 6, 38,
	60, 28, 52, 20, 62, 30, 54, 22,
	3, 35, 11, 43, 1, 33, 9, 41,
	51, 19, 59, 27, 49, 17, 57, 25,
	15, 47, 7, 39, 13, 45, 5, 37,
	63, 31, 55, 23, 61, 29, 53, 21,
}

func init() {
	for i := range bayer8 {
		bayer8[i] /= 64
	}
}

// ditherThreshold adds per-splat temporal noise to the Bayer value and
// wraps into [0,1) so the matrix maximum plus noise never fully discards.
func ditherThreshold(x, y int, id uint32) float32 {
	t := bayer8[(y&7)*8+(x&7)]
	noise := float32(id) * 0.013
	t += (noise - float32(math.Floor(float64(noise)))) * 0.1
	return t - float32(math.Floor(float64(t)))
}

// Compositor rasterizes footprints into a Target. The two modes are
// mutually exclusive within a frame.
type Compositor struct {
	Mode CompositeMode
}

// Composite draws the given splat indices. For CompositeSorted, indices
// must be the back-to-front order; for CompositeDithered any order is
// valid and the depth plane resolves occlusion.
func (c Compositor) Composite(t *Target, indices []uint32, projected []Projected) {
	if c.Mode == CompositeDithered {
		t.EnableDepth()
		for _, idx := range indices {
			c.drawDithered(t, idx, &projected[idx])
		}
		return
	}
	for _, idx := range indices {
		c.drawSorted(t, &projected[idx])
	}
}

func footprintBounds(t *Target, p *Projected) (x0, y0, x1, y1 int, ok bool) {
	x0 = int(math.Floor(float64(p.Center.X() - p.Radius)))
	y0 = int(math.Floor(float64(p.Center.Y() - p.Radius)))
	x1 = int(math.Ceil(float64(p.Center.X() + p.Radius)))
	y1 = int(math.Ceil(float64(p.Center.Y() + p.Radius)))
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > t.Width-1 {
		x1 = t.Width - 1
	}
	if y1 > t.Height-1 {
		y1 = t.Height - 1
	}
	return x0, y0, x1, y1, x0 <= x1 && y0 <= y1
}

// gaussianAlpha evaluates opacity * exp(-q/2) with the conic quadratic
// form, zero beyond the bounds radius.
func gaussianAlpha(p *Projected, dx, dy float32) float32 {
	q := p.ConicA*dx*dx + 2*p.ConicB*dx*dy + p.ConicC*dy*dy
	if q > BoundsRadiusSquared || q < 0 {
		return 0
	}
	return p.Color.W() * float32(math.Exp(float64(-0.5*q)))
}

func (Compositor) drawSorted(t *Target, p *Projected) {
	x0, y0, x1, y1, ok := footprintBounds(t, p)
	if !ok {
		return
	}
	for y := y0; y <= y1; y++ {
		row := y * t.Width
		for x := x0; x <= x1; x++ {
			dx := float32(x) + 0.5 - p.Center.X()
			dy := float32(y) + 0.5 - p.Center.Y()
			alpha := gaussianAlpha(p, dx, dy)
			if alpha < 1.0/255 {
				continue
			}
			i := (row + x) * 4
			inv := 1 - alpha
			t.Pix[i+0] = p.Color.X()*alpha + t.Pix[i+0]*inv
			t.Pix[i+1] = p.Color.Y()*alpha + t.Pix[i+1]*inv
			t.Pix[i+2] = p.Color.Z()*alpha + t.Pix[i+2]*inv
			t.Pix[i+3] = alpha + t.Pix[i+3]*inv
		}
	}
}

func (Compositor) drawDithered(t *Target, id uint32, p *Projected) {
	x0, y0, x1, y1, ok := footprintBounds(t, p)
	if !ok {
		return
	}
	for y := y0; y <= y1; y++ {
		row := y * t.Width
		for x := x0; x <= x1; x++ {
			dx := float32(x) + 0.5 - p.Center.X()
			dy := float32(y) + 0.5 - p.Center.Y()
			alpha := gaussianAlpha(p, dx, dy)
			if alpha < ditherThreshold(x, y, id) {
				continue
			}
			d := row + x
			if p.Depth >= t.Depth[d] {
				continue
			}
			t.Depth[d] = p.Depth
			i := d * 4
			t.Pix[i+0] = p.Color.X()
			t.Pix[i+1] = p.Color.Y()
			t.Pix[i+2] = p.Color.Z()
			t.Pix[i+3] = 1
		}
	}
}
