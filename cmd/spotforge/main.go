// Command spotforge generates a matching-card deck from a directory of
// icon images, without running the server.
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/spotforge/spotforge/internal/deck"
	"github.com/spotforge/spotforge/internal/icons"
	"github.com/spotforge/spotforge/internal/layout"
	"github.com/spotforge/spotforge/internal/render"
)

var (
	flagIcons     = flag.String("icons", "", "Directory of icon images (required)")
	flagOut       = flag.String("out", "deck.pdf", "Output PDF path")
	flagPNGDir    = flag.String("png-dir", "", "Also write one PNG per card into this directory")
	flagSymbols   = flag.Int("symbols", 8, "Symbols per card (>= 3)")
	flagCards     = flag.Int("cards", 0, "Number of cards (0 = maximum)")
	flagStrategy  = flag.String("strategy", "circle", "Layout strategy: grid, circle or smart")
	flagShape     = flag.String("shape", "circle", "Card shape: circle or square")
	flagSize      = flag.Int("size", 800, "Card size in pixels")
	flagSeed      = flag.Int64("seed", 0, "Random seed (0 = time-based)")
	flagRoundDown = flag.Bool("round-down", false, "Round non-prime-power orders down instead of failing")
)

func main() {
	flag.Parse()
	if *flagIcons == "" {
		flag.Usage()
		os.Exit(2)
	}

	set, err := icons.LoadDir(*flagIcons)
	if err != nil {
		log.Fatal(err)
	}

	policy := deck.FallbackFail
	if *flagRoundDown {
		policy = deck.FallbackRoundDown
	}
	d, err := deck.Build(*flagSymbols, policy)
	if err != nil {
		log.Fatal(err)
	}
	if d.SymbolsPerCard != *flagSymbols {
		fmt.Printf("no exact design for %d symbols per card, rounded down to %d\n",
			*flagSymbols, d.SymbolsPerCard)
	}

	seed := *flagSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sel, err := deck.Select(d, *flagCards, set.Resources, rand.New(rand.NewSource(seed)))
	if err != nil {
		log.Fatal(err)
	}

	strategy, err := layout.ParseStrategy(*flagStrategy)
	if err != nil {
		log.Fatal(err)
	}
	opt := layout.DefaultOptions()
	opt.Strategy = strategy
	cv := layout.Canvas{Width: float64(*flagSize), Height: float64(*flagSize)}
	layouts, err := layout.Cards(sel, cv, opt, seed, nil)
	if err != nil {
		log.Fatal(err)
	}

	shape, err := render.ParseCardShape(*flagShape)
	if err != nil {
		log.Fatal(err)
	}
	renderer := render.NewRaster(shape)
	images := make([]image.Image, len(layouts))
	for i, l := range layouts {
		if images[i], err = renderer.Render(l, set.Open); err != nil {
			log.Fatal(err)
		}
	}

	fd, err := os.Create(*flagOut)
	if err != nil {
		log.Fatal(err)
	}
	if err := render.WritePDF(fd, images); err != nil {
		log.Fatal(err)
	}
	if err := fd.Close(); err != nil {
		log.Fatal(err)
	}

	if *flagPNGDir != "" {
		if err := os.MkdirAll(*flagPNGDir, 0o755); err != nil {
			log.Fatal(err)
		}
		for i, img := range images {
			path := filepath.Join(*flagPNGDir, fmt.Sprintf("card_%02d.png", i))
			if err := imaging.Save(img, path); err != nil {
				log.Fatal(err)
			}
		}
	}

	fmt.Printf("%d cards, %d symbols per card, %d icons used, seed %d -> %s\n",
		len(layouts), sel.SymbolsPerCard, len(sel.Icons), seed, *flagOut)
}
