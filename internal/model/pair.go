package model

// PairKey is the canonical key of an unordered symbol pair: A sorts before B.
type PairKey struct {
	A string
	B string
}

// NewPairKey returns the canonical key for the two symbols in either order.
func NewPairKey(x, y string) PairKey {
	if y < x {
		x, y = y, x
	}
	return PairKey{A: x, B: y}
}

func (k PairKey) String() string { return k.A + "/" + k.B }

// CandidatePair is one unordered pair to test, with both close series attached.
type CandidatePair struct {
	Key     PairKey
	Sym1    string
	Sym2    string
	Series1 []float64
	Series2 []float64
	Seq     int // enumeration order
}

// Aligned returns both series truncated to the length of the shorter one.
func (p CandidatePair) Aligned() ([]float64, []float64) {
	return TrimToShorter(p.Series1, p.Series2)
}

// TrimToShorter truncates both slices to a common prefix length.
func TrimToShorter(a, b []float64) ([]float64, []float64) {
	n := min(len(a), len(b))
	return a[:n], b[:n]
}
