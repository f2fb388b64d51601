// Package deck constructs "spot the matching symbol" card designs: sets
// of cards that pairwise share exactly one symbol, backed by a finite
// projective plane of prime-power order.
package deck

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDeckInfeasible is returned when no valid design exists for the
// requested parameters.
var ErrDeckInfeasible = errors.New("deck: infeasible")

// FallbackPolicy selects what Build does when symbolsPerCard-1 is not a
// prime power, where no exact construction exists.
type FallbackPolicy int

const (
	// FallbackFail rejects non-prime-power orders with ErrDeckInfeasible.
	FallbackFail FallbackPolicy = iota
	// FallbackRoundDown builds the design for the largest prime power
	// below the requested order; the returned deck reports the reduced
	// SymbolsPerCard.
	FallbackRoundDown
)

// Deck is the maximal card design for a projective plane of prime-power
// order. Each card is a sorted slice of symbol ids in [0, UniverseSize).
// Any two distinct cards share exactly one symbol.
//
// Decks are immutable once built and bit-identical across builds with
// the same inputs.
type Deck struct {
	Order          int // prime power n
	SymbolsPerCard int // n+1, also the number of cards per symbol
	Cards          [][]int
}

// UniverseSize returns the number of distinct symbols, n²+n+1.
func (d *Deck) UniverseSize() int {
	return d.Order*d.Order + d.Order + 1
}

// MaxCards returns the number of cards in the maximal design, n²+n+1.
func (d *Deck) MaxCards() int {
	return len(d.Cards)
}

// Build constructs the maximal deck for the given symbols-per-card
// count via the Singer difference-set construction: the points of
// PG(2,q) are indexed by the cyclic group Z_N with N = q²+q+1, one line
// is read off as a perfect difference set D, and all N cards are the
// cyclic shifts D+s mod N.
//
// The base difference set is the trace-zero line: working in GF(q³)
// with generator g, point i lies on it iff Tr_{GF(q³)/GF(q)}(g^i) = 0.
// The difference-set property then guarantees |cardA ∩ cardB| = 1 for
// every pair without any pairwise checking.
func Build(symbolsPerCard int, policy FallbackPolicy) (*Deck, error) {
	if symbolsPerCard < 3 {
		return nil, fmt.Errorf("%w: need at least 3 symbols per card, got %d",
			ErrDeckInfeasible, symbolsPerCard)
	}
	n := symbolsPerCard - 1
	p, k, ok := primePower(n)
	if !ok {
		switch policy {
		case FallbackRoundDown:
			n = largestPrimePowerAtMost(n)
			p, k, _ = primePower(n)
		default:
			return nil, fmt.Errorf("%w: order %d is not a prime power", ErrDeckInfeasible, n)
		}
	}

	ds, err := differenceSet(p, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeckInfeasible, err)
	}

	q := n
	modulus := q*q + q + 1
	cards := make([][]int, 0, modulus)
	for shift := 0; shift < modulus; shift++ {
		card := make([]int, 0, q+1)
		for _, d := range ds {
			card = append(card, (d+shift)%modulus)
		}
		sort.Ints(card)
		cards = append(cards, card)
	}

	return &Deck{
		Order:          q,
		SymbolsPerCard: q + 1,
		Cards:          cards,
	}, nil
}

// differenceSet returns the perfect difference set of size q+1 modulo
// q²+q+1 for q = p^k, as sorted residues.
func differenceSet(p, k int) ([]int, error) {
	q := 1
	for i := 0; i < k; i++ {
		q *= p
	}
	f, err := newField(p, 3*k) // GF(q³)
	if err != nil {
		return nil, err
	}
	modulus := q*q + q + 1
	groupOrd := f.size - 1 // q³-1, a multiple of modulus

	var ds []int
	for i := 0; i < modulus; i++ {
		// Tr(u) = u + u^q + u^q² for u = g^i. The trace is GF(q)-linear,
		// so membership is well defined on the coset g^i·GF(q)*.
		u := f.exp[i]
		tr := f.add(u, f.add(f.pow(i*q%groupOrd), f.pow(i*q%groupOrd*q%groupOrd)))
		if tr == 0 {
			ds = append(ds, i)
		}
	}
	if len(ds) != q+1 {
		return nil, fmt.Errorf("difference set for order %d has size %d, want %d", q, len(ds), q+1)
	}
	return ds, nil
}
