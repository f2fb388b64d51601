package layout

import (
	"math"
	"math/rand"

	"github.com/spotforge/spotforge/internal/deck"
)

// Nominal sizes for the ring strategy, as fractions of the smaller
// canvas dimension. Actual sizes shrink as needed to honor the
// non-overlap and bounds invariants.
const (
	ringCenterScale = 0.35
	ringScaleSmall  = 0.22 // rings of up to 6 icons
	ringScaleLarge  = 0.20
	ringEdgeFill    = 0.98 // keep ring icons just inside the canvas

	// ringSlack backs every clamp off the exact tangency bound; the
	// trig-derived positions carry rounding error, so discs sized to
	// the bound itself can land a hair closer than it.
	ringSlack = 1 - 1e-9
)

// ring describes one concentric ring of icons.
type ring struct {
	radiusFrac float64 // ring radius as a fraction of minDim
	scale      float64 // nominal icon scale for this ring
	count      int
}

// ringPlan splits k symbols into a center icon plus one or two rings,
// after the hand-tuned layouts the strategy grew out of: three or
// fewer symbols form a single ring, up to nine get a center icon and
// one ring, more spill into a second, wider ring.
func ringPlan(k int) (center bool, rings []ring) {
	if k <= 3 {
		return false, []ring{{0.26, 0.30, k}}
	}
	rest := k - 1
	if rest <= 6 {
		return true, []ring{{0.30, ringScaleSmall, rest}}
	}
	if rest <= 8 {
		return true, []ring{{0.30, ringScaleLarge, rest}}
	}
	inner := (rest + 2) / 3
	return true, []ring{
		{0.20, 0.16, inner},
		{0.40, 0.15, rest - inner},
	}
}

// placeRings arranges the symbols on concentric rings with equalized
// angular spacing. Per-ring icon sizes are clamped by three closed-form
// constraints (neighbor chord, clearance toward the canvas edge, and
// clearance toward whatever sits further in), so the invariants hold
// without any retry loop.
func placeRings(symbols []deck.Symbol, cv Canvas, opt Options, rng *rand.Rand) []Placement {
	k := len(symbols)
	base := cv.minDim()
	ccx, ccy := cv.Width/2, cv.Height/2
	center, rings := ringPlan(k)

	placements := make([]Placement, 0, k)
	next := 0 // next symbol to place

	// Padded radius of the innermost already-placed obstacle: the
	// center icon, then each completed ring.
	innerEdge := 0.0

	if center {
		sym := symbols[next]
		next++
		scale := math.Min(ringCenterScale, opt.MaxScale)
		// The innermost ring must keep room for its own icons between
		// the center icon and the ring line.
		maxPadded := rings[0].radiusFrac * base * 0.55 * ringSlack
		p := ringPlacement(sym, ccx, ccy, scale, cv, opt, rng)
		if pr := paddedRadius(p, opt); pr > maxPadded {
			p = ringPlacement(sym, ccx, ccy, scale*maxPadded/pr, cv, opt, rng)
		}
		innerEdge = paddedRadius(p, opt)
		placements = append(placements, p)
	}

	startAngle := rng.Float64() * 2 * math.Pi
	for _, rg := range rings {
		radius := rg.radiusFrac * base
		// Largest padded icon radius this ring supports.
		allowed := radius * math.Sin(math.Pi/float64(rg.count)) // neighbor chord
		if edge := ringEdgeFill*base/2 - radius; edge < allowed {
			allowed = edge
		}
		if in := radius - innerEdge; in < allowed {
			allowed = in
		}
		allowed *= ringSlack

		step := 2 * math.Pi / float64(rg.count)
		maxPadded := 0.0
		for j := 0; j < rg.count; j++ {
			sym := symbols[next]
			next++
			angle := startAngle + float64(j)*step
			x := ccx + radius*math.Cos(angle)
			y := ccy + radius*math.Sin(angle)

			p := ringPlacement(sym, x, y, math.Min(rg.scale, opt.MaxScale), cv, opt, rng)
			if pr := paddedRadius(p, opt); pr > allowed {
				p = ringPlacement(sym, x, y, p.Scale*allowed/pr, cv, opt, rng)
			}
			if pr := paddedRadius(p, opt); pr > maxPadded {
				maxPadded = pr
			}
			placements = append(placements, p)
		}
		innerEdge = radius + maxPadded
		startAngle += step / 2 // stagger successive rings
	}
	return placements
}

// ringPlacement builds a disc-bounded placement at (x, y) with the
// given scale and a small random rotation.
func ringPlacement(sym deck.Symbol, x, y, scale float64, cv Canvas, opt Options, rng *rand.Rand) Placement {
	rotation := 0.0
	if opt.MaxRotation > 0 {
		rotation = (rng.Float64()*2 - 1) * opt.MaxRotation
	}
	w, h := scaledSize(sym.Icon, scale, cv)
	return Placement{
		Symbol:   sym,
		X:        x,
		Y:        y,
		W:        w,
		H:        h,
		Scale:    scale,
		Rotation: rotation,
		Shape:    Disc{x, y, math.Hypot(w, h) / 2},
	}
}

func paddedRadius(p Placement, opt Options) float64 {
	return math.Hypot(p.W, p.H)/2 + opt.MarginFrac*math.Min(p.W, p.H)/2
}
