// Package layout places card symbols on a canvas without overlap.
//
// Three strategies are available: a deterministic grid, concentric
// rings, and a randomized incremental packer ("smart") with bounded
// retries and a grid fallback. All strategies uphold the same
// invariants: one placement per symbol, every placement inside the
// canvas, and margin-expanded bounding shapes pairwise disjoint.
package layout

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/spotforge/spotforge/internal/deck"
	"github.com/spotforge/spotforge/internal/icons"
)

var (
	// ErrCanvasTooSmall means the canvas cannot hold even a single icon
	// at the configured minimum scale. This is a static pre-check;
	// packing itself never fails.
	ErrCanvasTooSmall = errors.New("layout: canvas too small")
	// ErrBadOptions means the option values are inconsistent.
	ErrBadOptions = errors.New("layout: bad options")
	// ErrUnknownStrategy means the strategy name is not one of grid,
	// circle or smart.
	ErrUnknownStrategy = errors.New("layout: unknown strategy")
)

// Strategy names a placement algorithm.
type Strategy string

const (
	StrategyGrid   Strategy = "grid"
	StrategyCircle Strategy = "circle"
	StrategySmart  Strategy = "smart"
)

// ParseStrategy validates a strategy name; the empty string selects
// the default circle strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyCircle, nil
	case StrategyGrid, StrategyCircle, StrategySmart:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Canvas is the drawable area of one card, in pixels.
type Canvas struct {
	Width  float64
	Height float64
}

func (cv Canvas) minDim() float64 { return math.Min(cv.Width, cv.Height) }

// Options are the tunable placement parameters. Scales are fractions
// of the smaller canvas dimension (an icon at scale s has its longest
// side equal to s times that dimension); MarginFrac is the breathing
// room between icons as a fraction of the smaller scaled icon
// dimension.
type Options struct {
	Strategy    Strategy
	MarginFrac  float64 // default 0.05
	MinScale    float64 // default 0.12
	MaxScale    float64 // default 0.38
	MaxAttempts int     // smart retry budget per symbol, default 48
	MaxRotation float64 // degrees, default 25
	JitterFrac  float64 // grid jitter as a fraction of free cell space, default 0.3
	MinIconPx   float64 // smallest usable icon size in pixels, default 16
}

// DefaultOptions returns the documented default tuning.
func DefaultOptions() Options {
	return Options{
		Strategy:    StrategyCircle,
		MarginFrac:  0.05,
		MinScale:    0.12,
		MaxScale:    0.38,
		MaxAttempts: 48,
		MaxRotation: 25,
		JitterFrac:  0.3,
		MinIconPx:   16,
	}
}

func (opt Options) validate() error {
	switch {
	case opt.MinScale <= 0 || opt.MaxScale < opt.MinScale:
		return fmt.Errorf("%w: scale range [%g, %g]", ErrBadOptions, opt.MinScale, opt.MaxScale)
	case opt.MarginFrac < 0:
		return fmt.Errorf("%w: negative margin fraction %g", ErrBadOptions, opt.MarginFrac)
	case opt.MaxAttempts < 1:
		return fmt.Errorf("%w: attempt budget %d", ErrBadOptions, opt.MaxAttempts)
	case opt.JitterFrac < 0 || opt.JitterFrac > 1:
		return fmt.Errorf("%w: jitter fraction %g", ErrBadOptions, opt.JitterFrac)
	}
	return nil
}

// Placement is one symbol's resolved geometry on a card. W and H are
// the scaled icon dimensions in pixels; Shape is the approximate
// envelope used for overlap tests, not a pixel mask.
type Placement struct {
	Symbol   deck.Symbol
	X, Y     float64 // center
	W, H     float64
	Scale    float64
	Rotation float64 // degrees
	Shape    Shape
}

// padded returns the placement's shape expanded by half the configured
// margin, so two padded shapes keep a full margin between them.
func (p Placement) padded(opt Options) Shape {
	return p.Shape.Inflate(opt.MarginFrac * math.Min(p.W, p.H) / 2)
}

// CardLayout is the finished placement list for one card.
type CardLayout struct {
	Index      int
	Canvas     Canvas
	Placements []Placement
}

// Validate checks the layout invariants: exactly want placements, all
// inside the canvas, and margin-expanded shapes pairwise disjoint.
func (l *CardLayout) Validate(want int, opt Options) error {
	if len(l.Placements) != want {
		return fmt.Errorf("layout: card %d has %d placements, want %d", l.Index, len(l.Placements), want)
	}
	for i, p := range l.Placements {
		if !p.Shape.Within(l.Canvas) {
			return fmt.Errorf("layout: card %d placement %d out of bounds", l.Index, i)
		}
	}
	for i := 0; i < len(l.Placements); i++ {
		for j := i + 1; j < len(l.Placements); j++ {
			if Intersects(l.Placements[i].padded(opt), l.Placements[j].padded(opt)) {
				return fmt.Errorf("layout: card %d placements %d and %d overlap", l.Index, i, j)
			}
		}
	}
	return nil
}

// Precheck verifies that the canvas can hold at least one icon at the
// minimum scale. It is the only way layout can fail: the strategies
// themselves always place every symbol.
func Precheck(cv Canvas, opt Options) error {
	if err := opt.validate(); err != nil {
		return err
	}
	if cv.Width <= 0 || cv.Height <= 0 || opt.MinScale*cv.minDim() < opt.MinIconPx {
		return fmt.Errorf("%w: %gx%g cannot hold a %gpx icon",
			ErrCanvasTooSmall, cv.Width, cv.Height, opt.MinIconPx)
	}
	return nil
}

// Card lays out one card's symbols. The result is a pure function of
// its arguments and the rng stream.
func Card(index int, symbols []deck.Symbol, cv Canvas, opt Options, rng *rand.Rand) (*CardLayout, error) {
	if err := Precheck(cv, opt); err != nil {
		return nil, err
	}
	var placements []Placement
	switch opt.Strategy {
	case StrategyGrid:
		placements = placeGrid(symbols, cv, opt, rng)
	case StrategySmart:
		placements = placeSmart(symbols, cv, opt, rng)
	case StrategyCircle, "":
		placements = placeRings(symbols, cv, opt, rng)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, opt.Strategy)
	}
	return &CardLayout{Index: index, Canvas: cv, Placements: placements}, nil
}

// Cards lays out every card of the selected deck on a bounded worker
// pool. Each card gets its own rng stream derived from seed and the
// card index, so results do not depend on scheduling. progress, if not
// nil, is called after each finished card.
func Cards(sel *deck.SelectedDeck, cv Canvas, opt Options, seed int64, progress func(done, total int)) ([]*CardLayout, error) {
	if err := Precheck(cv, opt); err != nil {
		return nil, err
	}
	total := len(sel.Cards)
	results := make([]*CardLayout, total)
	errs := make([]error, total)

	workers := runtime.NumCPU()
	if workers > total {
		workers = total
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := rand.New(rand.NewSource(cardSeed(seed, i)))
				results[i], errs[i] = Card(i, sel.Cards[i], cv, opt, rng)
				if progress != nil {
					mu.Lock()
					done++
					progress(done, total)
					mu.Unlock()
				}
			}
		}()
	}
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// cardSeed mixes the job seed with the card index (splitmix finalizer)
// so per-card streams are independent but reproducible.
func cardSeed(jobSeed int64, index int) int64 {
	x := uint64(jobSeed) + uint64(index+1)*0x9E3779B97F4A7C15
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return int64(x)
}

// scaledSize fits an icon's aspect ratio into a square box whose side
// is scale times the smaller canvas dimension.
func scaledSize(res icons.Resource, scale float64, cv Canvas) (w, h float64) {
	side := scale * cv.minDim()
	a := res.AspectRatio()
	if a >= 1 {
		return side, side / a
	}
	return side * a, side
}
