package layout

import (
	"math"
	"math/rand"

	"github.com/spotforge/spotforge/internal/deck"
)

// smartState is the per-symbol placement state. The transition graph is
// placing → placed, or placing → retrying → ... → exhausted, with the
// attempt counter bounding the retrying cycle.
type smartState uint8

const (
	statePlacing smartState = iota
	stateRetrying
	stateExhausted
	statePlaced
)

// placeSmart packs symbols one by one at randomized positions, scales
// and rotations, retrying on collision up to the attempt budget. A
// symbol that exhausts its budget is deferred to a deterministic grid
// slot; if even no grid slot is collision-free the whole card is
// re-laid-out with the plain grid strategy, which cannot fail. Smart
// layout therefore degrades rather than errors.
func placeSmart(symbols []deck.Symbol, cv Canvas, opt Options, rng *rand.Rand) []Placement {
	k := len(symbols)
	results := make([]*Placement, k)
	var placed []Placement
	var deferred []int

	for i, sym := range symbols {
		p, ok := smartOne(sym, placed, cv, opt, rng)
		if !ok {
			deferred = append(deferred, i)
			continue
		}
		results[i] = &p
		placed = append(placed, p)
	}

	for _, i := range deferred {
		p, ok := fallbackSlot(symbols[i], i, k, placed, cv, opt)
		if !ok {
			// No clear slot left; rebuild the whole card on the grid.
			return placeGrid(symbols, cv, opt, rng)
		}
		results[i] = &p
		placed = append(placed, p)
	}

	out := make([]Placement, k)
	for i, p := range results {
		out[i] = *p
	}
	return out
}

// smartOne runs the bounded placement state machine for one symbol.
func smartOne(sym deck.Symbol, placed []Placement, cv Canvas, opt Options, rng *rand.Rand) (Placement, bool) {
	state := statePlacing
	attempt := 0
	var p Placement
	for {
		switch state {
		case statePlacing, stateRetrying:
			var ok bool
			p, ok = smartAttempt(sym, placed, cv, opt, rng, attempt)
			if ok {
				state = statePlaced
				break
			}
			attempt++
			if attempt >= opt.MaxAttempts {
				state = stateExhausted
			} else {
				state = stateRetrying
			}
		case statePlaced:
			return p, true
		case stateExhausted:
			return Placement{}, false
		}
	}
}

// smartAttempt samples one candidate placement. The scale ceiling
// shrinks and the position sampling shifts toward open canvas regions
// as the attempt count grows.
func smartAttempt(sym deck.Symbol, placed []Placement, cv Canvas, opt Options, rng *rand.Rand, attempt int) (Placement, bool) {
	frac := float64(attempt) / float64(opt.MaxAttempts)
	hi := opt.MaxScale - (opt.MaxScale-opt.MinScale)*frac
	scale := opt.MinScale + rng.Float64()*(hi-opt.MinScale)

	w, h := scaledSize(sym.Icon, scale, cv)
	r := math.Hypot(w, h) / 2
	pad := opt.MarginFrac * math.Min(w, h) / 2
	keep := r + pad // keep the padded disc fully on canvas

	if 2*keep >= cv.Width || 2*keep >= cv.Height {
		return Placement{}, false
	}

	x, y := samplePosition(placed, cv, keep, rng, frac)
	candidate := Disc{x, y, r}
	for _, q := range placed {
		if Intersects(candidate.Inflate(pad), q.padded(opt)) {
			return Placement{}, false
		}
	}

	rotation := 0.0
	if opt.MaxRotation > 0 {
		rotation = (rng.Float64()*2 - 1) * opt.MaxRotation
	}
	return Placement{
		Symbol:   sym,
		X:        x,
		Y:        y,
		W:        w,
		H:        h,
		Scale:    scale,
		Rotation: rotation,
		Shape:    candidate,
	}, true
}

// samplePosition picks a center with the padded disc inside the
// canvas. Late attempts draw several candidates and keep the one with
// the most clearance from everything already placed.
func samplePosition(placed []Placement, cv Canvas, keep float64, rng *rand.Rand, frac float64) (float64, float64) {
	draw := func() (float64, float64) {
		x := keep + rng.Float64()*(cv.Width-2*keep)
		y := keep + rng.Float64()*(cv.Height-2*keep)
		return x, y
	}
	if frac < 0.33 || len(placed) == 0 {
		return draw()
	}
	bestX, bestY := draw()
	best := clearance(bestX, bestY, placed)
	for c := 0; c < 3; c++ {
		x, y := draw()
		if d := clearance(x, y, placed); d > best {
			bestX, bestY, best = x, y, d
		}
	}
	return bestX, bestY
}

// clearance is the distance from (x, y) to the nearest placed shape
// edge.
func clearance(x, y float64, placed []Placement) float64 {
	best := math.Inf(1)
	for _, p := range placed {
		px, py := p.Shape.center()
		if d := math.Hypot(x-px, y-py) - p.Shape.radius(); d < best {
			best = d
		}
	}
	return best
}

// fallbackSlot places a deferred symbol on the grid partition the card
// would use under the grid strategy. Slots are probed starting at the
// symbol's own index, shrinking the icon stepwise before giving up on
// a slot.
func fallbackSlot(sym deck.Symbol, index, k int, placed []Placement, cv Canvas, opt Options) (Placement, bool) {
	rows, cols := gridDims(k)
	cellW := cv.Width / float64(cols)
	cellH := cv.Height / float64(rows)

	for probe := 0; probe < k; probe++ {
		slot := (index + probe) % k
		row, col := slot/cols, slot%cols
		cx := (float64(col) + 0.5) * cellW
		cy := (float64(row) + 0.5) * cellH

		side, w, h := cellFit(sym, cellW, cellH, false, cv, opt)
		for shrink := 1.0; shrink >= 0.3; shrink *= 0.75 {
			sw, sh := w*shrink, h*shrink
			p := Placement{
				Symbol: sym,
				X:      cx,
				Y:      cy,
				W:      sw,
				H:      sh,
				Scale:  side * shrink / cv.minDim(),
				Shape:  Rect{cx - sw/2, cy - sh/2, cx + sw/2, cy + sh/2},
			}
			if clearOf(p, placed, opt) {
				return p, true
			}
		}
	}
	return Placement{}, false
}

func clearOf(p Placement, placed []Placement, opt Options) bool {
	for _, q := range placed {
		if Intersects(p.padded(opt), q.padded(opt)) {
			return false
		}
	}
	return true
}
