package app

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// OverlayVertex matches the text.wgsl vertex layout: NDC position, atlas
// UV, straight-alpha color.
type OverlayVertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]float32
}

type glyph struct {
	uvMin [2]float32
	uvMax [2]float32
	size  [2]float32
	off   [2]float32
	adv   float32
}

// Overlay rasterizes the ASCII range of a TTF font into an alpha atlas
// and builds screen-space quads for the stats text.
type Overlay struct {
	Atlas  *image.Alpha
	glyphs map[rune]glyph
	face   font.Face
}

const overlayAtlasSize = 512

func NewOverlay(fontPath string, fontSize float64) (*Overlay, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("app: read font: %w", err)
	}
	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("app: parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("app: font face: %w", err)
	}

	atlas := image.NewAlpha(image.Rect(0, 0, overlayAtlasSize, overlayAtlasSize))
	glyphs := make(map[rune]glyph)

	x, y := 2, 2
	rowHeight := 0
	for r := rune(32); r < 127; r++ {
		bounds, mask, _, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		w := mask.Bounds().Dx()
		h := mask.Bounds().Dy()
		if x+w >= overlayAtlasSize {
			x = 2
			y += rowHeight + 4
			rowHeight = 0
		}
		if y+h >= overlayAtlasSize {
			break
		}
		draw.Draw(atlas, image.Rect(x, y, x+w, y+h), mask, mask.Bounds().Min, draw.Src)

		glyphs[r] = glyph{
			uvMin: [2]float32{float32(x) / overlayAtlasSize, float32(y) / overlayAtlasSize},
			uvMax: [2]float32{float32(x+w) / overlayAtlasSize, float32(y+h) / overlayAtlasSize},
			size:  [2]float32{float32(w), float32(h)},
			off:   [2]float32{float32(bounds.Min.X), float32(bounds.Min.Y)},
			adv:   float32(adv) / 64.0,
		}
		x += w + 4
		if h > rowHeight {
			rowHeight = h
		}
	}

	return &Overlay{Atlas: atlas, glyphs: glyphs, face: face}, nil
}

// BuildVertices lays out text starting at a pixel position, two triangles
// per glyph, in NDC for the given viewport.
func (o *Overlay) BuildVertices(text string, px, py float32, color [4]float32, screenW, screenH int) []OverlayVertex {
	vertices := make([]OverlayVertex, 0, len(text)*6)
	sw, sh := float32(screenW), float32(screenH)
	metrics := o.face.Metrics()
	ascent := float32(metrics.Ascent.Ceil())
	lineHeight := float32(metrics.Height.Ceil())

	penX, penY := px, py+ascent
	for _, r := range text {
		if r == '\n' {
			penX = px
			penY += lineHeight
			continue
		}
		g, ok := o.glyphs[r]
		if !ok {
			continue
		}
		x0 := penX + g.off[0]
		y0 := penY + g.off[1]
		x1 := x0 + g.size[0]
		y1 := y0 + g.size[1]
		penX += g.adv
		if g.size[0] == 0 || g.size[1] == 0 {
			continue
		}

		toNDC := func(x, y float32) [2]float32 {
			return [2]float32{x/sw*2 - 1, 1 - y/sh*2}
		}
		quad := [4]OverlayVertex{
			{Pos: toNDC(x0, y0), UV: [2]float32{g.uvMin[0], g.uvMin[1]}, Color: color},
			{Pos: toNDC(x1, y0), UV: [2]float32{g.uvMax[0], g.uvMin[1]}, Color: color},
			{Pos: toNDC(x1, y1), UV: [2]float32{g.uvMax[0], g.uvMax[1]}, Color: color},
			{Pos: toNDC(x0, y1), UV: [2]float32{g.uvMin[0], g.uvMax[1]}, Color: color},
		}
		vertices = append(vertices, quad[0], quad[1], quad[2], quad[0], quad[2], quad[3])
	}
	return vertices
}
