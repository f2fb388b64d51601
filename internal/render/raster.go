// Package render turns finished card layouts into images and
// paginated documents. The deck and layout packages never import it;
// callers inject the renderer as a capability.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/spotforge/spotforge/internal/layout"
)

// IconResolver loads the image for an icon resource name.
type IconResolver func(name string) (image.Image, error)

// CardRenderer rasterizes one card layout.
type CardRenderer interface {
	Render(l *layout.CardLayout, resolve IconResolver) (image.Image, error)
}

// CardShape selects the card outline.
type CardShape string

const (
	ShapeCircle CardShape = "circle"
	ShapeSquare CardShape = "square"
)

// ParseCardShape validates a shape name; the empty string selects
// circle.
func ParseCardShape(s string) (CardShape, error) {
	switch CardShape(s) {
	case "":
		return ShapeCircle, nil
	case ShapeCircle, ShapeSquare:
		return CardShape(s), nil
	}
	return "", fmt.Errorf("render: unknown card shape %q", s)
}

// Raster renders cards by compositing resized, rotated icons onto a
// plain background with a border.
type Raster struct {
	Shape       CardShape
	Background  color.NRGBA
	BorderColor color.NRGBA
	BorderWidth int
}

// NewRaster returns a renderer with a white background and a black
// border.
func NewRaster(shape CardShape) *Raster {
	return &Raster{
		Shape:       shape,
		Background:  color.NRGBA{255, 255, 255, 255},
		BorderColor: color.NRGBA{0, 0, 0, 255},
		BorderWidth: 10,
	}
}

// Render composites every placement onto the canvas, then applies the
// card outline (and, for circle cards, clips to the circle).
func (r *Raster) Render(l *layout.CardLayout, resolve IconResolver) (image.Image, error) {
	w := int(math.Round(l.Canvas.Width))
	h := int(math.Round(l.Canvas.Height))
	canvas := imaging.New(w, h, r.Background)

	for _, p := range l.Placements {
		src, err := resolve(p.Symbol.Icon.Name)
		if err != nil {
			return nil, fmt.Errorf("render: icon %q: %w", p.Symbol.Icon.Name, err)
		}
		icon := imaging.Resize(src, round(p.W), round(p.H), imaging.Lanczos)
		if p.Rotation != 0 {
			icon = imaging.Rotate(icon, p.Rotation, color.NRGBA{})
		}
		b := icon.Bounds()
		pos := image.Pt(round(p.X)-b.Dx()/2, round(p.Y)-b.Dy()/2)
		canvas = imaging.Overlay(canvas, icon, pos, 1.0)
	}

	switch r.Shape {
	case ShapeSquare:
		r.squareBorder(canvas)
	default:
		r.circleBorder(canvas)
	}
	return canvas, nil
}

// circleBorder clips the card to its inscribed circle and draws a ring
// border along the rim.
func (r *Raster) circleBorder(img *image.NRGBA) {
	b := img.Bounds()
	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2
	radius := math.Min(cx, cy)
	inner := radius - float64(r.BorderWidth)

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			switch {
			case d > radius:
				img.SetNRGBA(x, y, color.NRGBA{})
			case d > inner:
				img.SetNRGBA(x, y, r.BorderColor)
			}
		}
	}
}

func (r *Raster) squareBorder(img *image.NRGBA) {
	b := img.Bounds()
	bw := r.BorderWidth
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if x < bw || y < bw || x >= b.Dx()-bw || y >= b.Dy()-bw {
				img.SetNRGBA(x, y, r.BorderColor)
			}
		}
	}
}

func round(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		n = 1
	}
	return n
}
