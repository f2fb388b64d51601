package deck

import "fmt"

// field implements arithmetic in GF(p^m) using exp/log tables over a
// polynomial basis. Elements are encoded as integers in [0, p^m): the
// base-p digits of the encoding are the coefficients of the polynomial
// representation, lowest degree first.
//
// The tables are built from the lexicographically first primitive monic
// polynomial of degree m over GF(p), which makes every derived value
// deterministic for a given (p, m).
type field struct {
	p, m int
	size int   // p^m
	exp  []int // exp[i] = encoding of g^i, g = x, length size-1
	log  []int // log[enc] = i with exp[i] == enc; log[0] = -1
}

func newField(p, m int) (*field, error) {
	size := 1
	for i := 0; i < m; i++ {
		size *= p
	}
	poly, err := primitivePoly(p, m)
	if err != nil {
		return nil, err
	}

	f := &field{p: p, m: m, size: size}
	f.exp = make([]int, size-1)
	f.log = make([]int, size)
	for i := range f.log {
		f.log[i] = -1
	}

	// Successive powers of x, reduced modulo the primitive polynomial.
	cur := make([]int, m)
	cur[0] = 1
	for i := 0; i < size-1; i++ {
		enc := encode(cur, p)
		f.exp[i] = enc
		f.log[enc] = i
		cur = mulByX(cur, poly, p)
	}
	return f, nil
}

// add returns the sum of two encoded elements.
func (f *field) add(a, b int) int {
	sum := 0
	mult := 1
	for i := 0; i < f.m; i++ {
		d := (a%f.p + b%f.p) % f.p
		a, b = a/f.p, b/f.p
		sum += d * mult
		mult *= f.p
	}
	return sum
}

// pow returns g^e for the field generator g, with e reduced modulo the
// group order.
func (f *field) pow(e int) int {
	ord := f.size - 1
	e %= ord
	if e < 0 {
		e += ord
	}
	return f.exp[e]
}

// encode packs a coefficient vector (lowest degree first) into an int.
func encode(coeffs []int, p int) int {
	enc := 0
	for i := len(coeffs) - 1; i >= 0; i-- {
		enc = enc*p + coeffs[i]
	}
	return enc
}

// mulByX multiplies a degree < m polynomial by x and reduces it modulo
// the monic polynomial x^m + poly[m-1] x^(m-1) + ... + poly[0].
func mulByX(coeffs, poly []int, p int) []int {
	m := len(coeffs)
	out := make([]int, m)
	carry := coeffs[m-1]
	copy(out[1:], coeffs[:m-1])
	if carry != 0 {
		for i := 0; i < m; i++ {
			out[i] = (out[i] + (p-poly[i])*carry) % p
		}
	}
	return out
}

// primitivePoly finds the first monic polynomial of degree m over GF(p)
// such that x generates the full multiplicative group of the quotient
// ring. Such an x of order p^m-1 forces the ring to be the field
// GF(p^m), so irreducibility needs no separate test.
func primitivePoly(p, m int) ([]int, error) {
	size := 1
	for i := 0; i < m; i++ {
		size *= p
	}
	ord := size - 1
	radicals := primeFactors(ord)

	coeffs := make([]int, m)
	for enc := 1; enc < size; enc++ {
		c := enc
		for i := 0; i < m; i++ {
			coeffs[i] = c % p
			c /= p
		}
		if coeffs[0] == 0 {
			continue // x would divide the polynomial
		}
		if xOrderIs(coeffs, p, ord, radicals) {
			out := make([]int, m)
			copy(out, coeffs)
			return out, nil
		}
	}
	return nil, fmt.Errorf("no primitive polynomial of degree %d over GF(%d)", m, p)
}

// xOrderIs reports whether x has multiplicative order exactly ord in
// GF(p)[x]/(f), with radicals the distinct prime factors of ord.
func xOrderIs(poly []int, p, ord int, radicals []int) bool {
	if !polyIsOne(polyXPow(ord, poly, p)) {
		return false
	}
	for _, r := range radicals {
		if polyIsOne(polyXPow(ord/r, poly, p)) {
			return false
		}
	}
	return true
}

// polyXPow computes x^e modulo the monic polynomial poly over GF(p) by
// square and multiply.
func polyXPow(e int, poly []int, p int) []int {
	m := len(poly)
	result := make([]int, m)
	result[0] = 1
	base := make([]int, m)
	if m == 1 {
		// x ≡ -poly[0] in a degree-1 quotient
		base[0] = (p - poly[0]) % p
	} else {
		base[1] = 1
	}
	for e > 0 {
		if e&1 == 1 {
			result = polyMulMod(result, base, poly, p)
		}
		base = polyMulMod(base, base, poly, p)
		e >>= 1
	}
	return result
}

func polyMulMod(a, b, poly []int, p int) []int {
	m := len(poly)
	prod := make([]int, 2*m-1)
	for i, ai := range a {
		if ai == 0 {
			continue
		}
		for j, bj := range b {
			prod[i+j] = (prod[i+j] + ai*bj) % p
		}
	}
	// Reduce from the top using x^m ≡ -poly.
	for d := 2*m - 2; d >= m; d-- {
		c := prod[d]
		if c == 0 {
			continue
		}
		prod[d] = 0
		for i := 0; i < m; i++ {
			prod[d-m+i] = (prod[d-m+i] + (p-poly[i])*c) % p
		}
	}
	return prod[:m]
}

func polyIsOne(coeffs []int) bool {
	if coeffs[0] != 1 {
		return false
	}
	for _, c := range coeffs[1:] {
		if c != 0 {
			return false
		}
	}
	return true
}

// primeFactors returns the distinct prime factors of n in ascending
// order.
func primeFactors(n int) []int {
	var out []int
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			out = append(out, d)
			for n%d == 0 {
				n /= d
			}
		}
	}
	if n > 1 {
		out = append(out, n)
	}
	return out
}

// primePower decomposes n as p^k for prime p, if possible.
func primePower(n int) (p, k int, ok bool) {
	if n < 2 {
		return 0, 0, false
	}
	factors := primeFactors(n)
	if len(factors) != 1 {
		return 0, 0, false
	}
	p = factors[0]
	for n > 1 {
		n /= p
		k++
	}
	return p, k, true
}

// largestPrimePowerAtMost returns the largest prime power <= n, or 0 if
// there is none (n < 2).
func largestPrimePowerAtMost(n int) int {
	for q := n; q >= 2; q-- {
		if _, _, ok := primePower(q); ok {
			return q
		}
	}
	return 0
}
