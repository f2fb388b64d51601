package layout

import (
	"math"
	"math/rand"

	"github.com/spotforge/spotforge/internal/deck"
)

// gridFill keeps a sliver of every cell free even before margins.
const gridFill = 0.96

// gridDims returns the smallest near-square grid with rows*cols >= k.
func gridDims(k int) (rows, cols int) {
	cols = int(math.Ceil(math.Sqrt(float64(k))))
	rows = (k + cols - 1) / cols
	return rows, cols
}

// placeGrid puts one symbol per cell of a rows×cols partition of the
// canvas. Every padded shape stays inside its own cell, so the
// non-overlap invariant holds by construction regardless of jitter and
// rotation.
func placeGrid(symbols []deck.Symbol, cv Canvas, opt Options, rng *rand.Rand) []Placement {
	k := len(symbols)
	rows, cols := gridDims(k)
	cellW := cv.Width / float64(cols)
	cellH := cv.Height / float64(rows)

	placements := make([]Placement, k)
	for i, sym := range symbols {
		row, col := i/cols, i%cols
		cx := (float64(col) + 0.5) * cellW
		cy := (float64(row) + 0.5) * cellH

		rotation := 0.0
		if opt.MaxRotation > 0 {
			rotation = (rng.Float64()*2 - 1) * opt.MaxRotation
		}
		side, w, h := cellFit(sym, cellW, cellH, rotation != 0, cv, opt)
		pad := opt.MarginFrac * math.Min(w, h) / 2

		// Jitter within the slack the cell leaves around the padded
		// shape.
		var freeX, freeY float64
		if rotation != 0 {
			r := math.Hypot(w, h) / 2
			freeX = cellW/2 - r - pad
			freeY = cellH/2 - r - pad
		} else {
			freeX = cellW/2 - w/2 - pad
			freeY = cellH/2 - h/2 - pad
		}
		if opt.JitterFrac > 0 {
			if freeX > 0 {
				cx += (rng.Float64()*2 - 1) * freeX * opt.JitterFrac
			}
			if freeY > 0 {
				cy += (rng.Float64()*2 - 1) * freeY * opt.JitterFrac
			}
		}

		placements[i] = Placement{
			Symbol:   sym,
			X:        cx,
			Y:        cy,
			W:        w,
			H:        h,
			Scale:    side / cv.minDim(),
			Rotation: rotation,
			Shape:    shapeFor(cx, cy, w, h, rotation),
		}
	}
	return placements
}

// cellFit computes the largest icon box side that keeps the icon's
// padded bounding shape inside a cell, capped at the configured
// maximum scale. Returns the box side and the scaled icon dimensions.
func cellFit(sym deck.Symbol, cellW, cellH float64, rotated bool, cv Canvas, opt Options) (side, w, h float64) {
	a := sym.Icon.AspectRatio()
	f := math.Min(a, 1/a) // shorter side as a fraction of the longer
	rw, rh := 1.0, f
	if a < 1 {
		rw, rh = f, 1.0
	}

	if rotated {
		diag := math.Hypot(rw, rh)
		side = gridFill * math.Min(cellW, cellH) / (diag + opt.MarginFrac*f)
	} else {
		sw := gridFill * cellW / (rw + opt.MarginFrac*f)
		sh := gridFill * cellH / (rh + opt.MarginFrac*f)
		side = math.Min(sw, sh)
	}
	if max := opt.MaxScale * cv.minDim(); side > max {
		side = max
	}
	return side, side * rw, side * rh
}
