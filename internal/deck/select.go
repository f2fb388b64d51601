package deck

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/spotforge/spotforge/internal/icons"
)

// ErrInsufficientIcons is the sentinel wrapped by
// InsufficientIconsError.
var ErrInsufficientIcons = errors.New("deck: not enough icons")

// InsufficientIconsError reports an icon pool smaller than the number
// of distinct symbols the selected cards need.
type InsufficientIconsError struct {
	Need int
	Have int
}

func (e *InsufficientIconsError) Error() string {
	return fmt.Sprintf("deck: not enough icons: need %d, have %d (short by %d)",
		e.Need, e.Have, e.Deficit())
}

func (e *InsufficientIconsError) Deficit() int { return e.Need - e.Have }

func (e *InsufficientIconsError) Unwrap() error { return ErrInsufficientIcons }

// Symbol is a deck symbol bound to a concrete icon resource.
type Symbol struct {
	ID   int
	Icon icons.Resource
}

// SelectedDeck is the caller-requested slice of a maximal deck, with
// symbol ids remapped to a dense range and each id bound to one icon.
type SelectedDeck struct {
	SymbolsPerCard int
	Cards          [][]Symbol
	Icons          []icons.Resource // indexed by dense symbol id
}

// Select takes the first requestedCards cards of the deck (0 means all
// of them; a prefix of a valid design is itself valid), remaps the
// symbol ids used by those cards to [0, distinct), and binds each id to
// an icon drawn from a random permutation of the pool. The binding is a
// bijection: no icon is shared between two symbol ids.
//
// The rng drives the icon permutation and the per-card symbol order;
// callers seed it explicitly so selections are reproducible.
func Select(d *Deck, requestedCards int, pool []icons.Resource, rng *rand.Rand) (*SelectedDeck, error) {
	switch {
	case requestedCards < 0:
		return nil, fmt.Errorf("%w: negative card count %d", ErrDeckInfeasible, requestedCards)
	case requestedCards > d.MaxCards():
		return nil, fmt.Errorf("%w: requested %d cards, the order-%d design has only %d",
			ErrDeckInfeasible, requestedCards, d.Order, d.MaxCards())
	case requestedCards == 0:
		requestedCards = d.MaxCards()
	}
	chosen := d.Cards[:requestedCards]

	used := map[int]bool{}
	for _, card := range chosen {
		for _, s := range card {
			used[s] = true
		}
	}
	ids := make([]int, 0, len(used))
	for s := range used {
		ids = append(ids, s)
	}
	sort.Ints(ids)

	if len(pool) < len(ids) {
		return nil, &InsufficientIconsError{Need: len(ids), Have: len(pool)}
	}

	perm := rng.Perm(len(pool))
	dense := make(map[int]int, len(ids))
	bound := make([]icons.Resource, len(ids))
	for j, id := range ids {
		dense[id] = j
		bound[j] = pool[perm[j]]
	}

	sel := &SelectedDeck{
		SymbolsPerCard: d.SymbolsPerCard,
		Cards:          make([][]Symbol, len(chosen)),
		Icons:          bound,
	}
	for i, card := range chosen {
		syms := make([]Symbol, len(card))
		for j, s := range card {
			id := dense[s]
			syms[j] = Symbol{ID: id, Icon: bound[id]}
		}
		// Shuffle the on-card order so the same symbol does not always
		// land in the same slot across cards.
		rng.Shuffle(len(syms), func(a, b int) { syms[a], syms[b] = syms[b], syms[a] })
		sel.Cards[i] = syms
	}
	return sel, nil
}
