package layout

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spotforge/spotforge/internal/deck"
	"github.com/spotforge/spotforge/internal/icons"
)

func testSymbols(n int) []deck.Symbol {
	syms := make([]deck.Symbol, n)
	for i := range syms {
		// Mix of wide, tall and square icons.
		w, h := 64, 64
		switch i % 3 {
		case 1:
			w = 96
		case 2:
			h = 96
		}
		syms[i] = deck.Symbol{
			ID:   i,
			Icon: icons.Resource{Name: fmt.Sprintf("icon%02d", i), Width: w, Height: h},
		}
	}
	return syms
}

func TestParseStrategy(t *testing.T) {
	cases := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyCircle, false},
		{"grid", StrategyGrid, false},
		{"circle", StrategyCircle, false},
		{"smart", StrategySmart, false},
		{"spiral", "", true},
		{"Grid", "", true},
	}
	for _, tc := range cases {
		got, err := ParseStrategy(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCardInvariants(t *testing.T) {
	// Non-square canvases matter: the ring clamps work off the smaller
	// dimension, and rounding near the tangency bounds shows up there.
	canvases := []Canvas{
		{Width: 800, Height: 800},
		{Width: 500, Height: 400},
		{Width: 640, Height: 480},
		{Width: 400, Height: 700},
	}
	for _, strategy := range []Strategy{StrategyGrid, StrategyCircle, StrategySmart} {
		for _, cv := range canvases {
			for _, count := range []int{3, 4, 5, 6, 8, 9, 10, 13} {
				for seed := int64(0); seed < 20; seed++ {
					opt := DefaultOptions()
					opt.Strategy = strategy
					rng := rand.New(rand.NewSource(seed))
					l, err := Card(0, testSymbols(count), cv, opt, rng)
					if err != nil {
						t.Fatalf("%s/%gx%g/%d/seed %d: %v", strategy, cv.Width, cv.Height, count, seed, err)
					}
					if err := l.Validate(count, opt); err != nil {
						t.Errorf("%s/%gx%g/%d/seed %d: %v", strategy, cv.Width, cv.Height, count, seed, err)
					}
				}
			}
		}
	}
}

func TestCardZeroRotation(t *testing.T) {
	cv := Canvas{Width: 800, Height: 800}
	opt := DefaultOptions()
	opt.Strategy = StrategyGrid
	opt.MaxRotation = 0
	l, err := Card(0, testSymbols(8), cv, opt, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range l.Placements {
		if p.Rotation != 0 {
			t.Errorf("placement %d rotated %g° with rotation disabled", i, p.Rotation)
		}
		if _, ok := p.Shape.(Rect); !ok {
			t.Errorf("placement %d has %T envelope, want Rect", i, p.Shape)
		}
	}
	if err := l.Validate(8, opt); err != nil {
		t.Error(err)
	}
}

// A canvas where the default scale range is too generous for the symbol
// count forces the smart packer through its retry and fallback stages.
func TestSmartCrowdedCanvas(t *testing.T) {
	cv := Canvas{Width: 300, Height: 300}
	opt := DefaultOptions()
	opt.Strategy = StrategySmart
	opt.MinScale = 0.15
	opt.MaxScale = 0.5
	for seed := int64(0); seed < 10; seed++ {
		l, err := Card(0, testSymbols(8), cv, opt, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if err := l.Validate(8, opt); err != nil {
			t.Errorf("seed %d: %v", seed, err)
		}
	}
}

func TestPrecheck(t *testing.T) {
	opt := DefaultOptions()
	if err := Precheck(Canvas{Width: 800, Height: 800}, opt); err != nil {
		t.Errorf("800x800 canvas rejected: %v", err)
	}
	// 0.12 * 100 = 12px < 16px minimum.
	if err := Precheck(Canvas{Width: 100, Height: 100}, opt); err == nil {
		t.Error("100x100 canvas accepted")
	}
	if err := Precheck(Canvas{Width: 0, Height: 800}, opt); err == nil {
		t.Error("zero-width canvas accepted")
	}

	bad := DefaultOptions()
	bad.MinScale = 0.5
	bad.MaxScale = 0.2
	if err := Precheck(Canvas{Width: 800, Height: 800}, bad); err == nil {
		t.Error("inverted scale range accepted")
	}
}

func TestCardsDeterministic(t *testing.T) {
	d, err := deck.Build(6, deck.FallbackFail)
	if err != nil {
		t.Fatal(err)
	}
	pool := make([]icons.Resource, d.UniverseSize())
	for i := range pool {
		pool[i] = icons.Resource{Name: fmt.Sprintf("icon%03d", i), Width: 80, Height: 60}
	}
	sel, err := deck.Select(d, 0, pool, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatal(err)
	}

	cv := Canvas{Width: 600, Height: 600}
	opt := DefaultOptions()
	opt.Strategy = StrategySmart

	a, err := Cards(sel, cv, opt, 123, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Cards(sel, cv, opt, 123, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed, different layouts (-first +second):\n%s", diff)
	}

	// Parallel result matches per-card serial runs with the same derived
	// seeds, so scheduling cannot leak into the output.
	for i, card := range sel.Cards {
		rng := rand.New(rand.NewSource(cardSeed(123, i)))
		l, err := Card(i, card, cv, opt, rng)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(a[i], l); diff != "" {
			t.Errorf("card %d: parallel vs serial (-parallel +serial):\n%s", i, diff)
		}
	}
}

func TestCardsProgress(t *testing.T) {
	d, err := deck.Build(4, deck.FallbackFail)
	if err != nil {
		t.Fatal(err)
	}
	pool := make([]icons.Resource, d.UniverseSize())
	for i := range pool {
		pool[i] = icons.Resource{Name: fmt.Sprintf("icon%03d", i), Width: 64, Height: 64}
	}
	sel, err := deck.Select(d, 0, pool, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}

	var calls int
	var lastDone int
	layouts, err := Cards(sel, Canvas{Width: 600, Height: 600}, DefaultOptions(), 7, func(done, total int) {
		calls++
		if total != len(sel.Cards) {
			t.Errorf("progress total = %d, want %d", total, len(sel.Cards))
		}
		if done <= lastDone {
			t.Errorf("progress done not increasing: %d after %d", done, lastDone)
		}
		lastDone = done
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != len(sel.Cards) {
		t.Errorf("progress called %d times, want %d", calls, len(sel.Cards))
	}
	if lastDone != len(layouts) {
		t.Errorf("final progress done = %d, want %d", lastDone, len(layouts))
	}
}
