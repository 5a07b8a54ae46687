package kernel

import (
	"fmt"

	"bitbucket.org/dtolpin/salzberg/features"
)

type mode int

const (
	// rawMode skips the division by the diagonal, it is used to
	// compute the diagonal itself.
	rawMode mode = iota
	normalizedMode
)

// side is a feature set together with its normalization cache.
type side struct {
	set   features.Features
	cache *normCache
}

// evaluate computes the similarity of vector i of a and vector j of b.
func evaluate(a, b side, st *Statistics, v valuer, i, j int, m mode) (float64, error) {
	alen, blen := a.set.VectorLength(i), b.set.VectorLength(j)
	if alen != blen {
		return 0, fmt.Errorf("%w: vectors %d and %d have lengths %d and %d",
			ErrShapeMismatch, i, j, alen, blen)
	}
	if alen != st.Length {
		return 0, fmt.Errorf("%w: vectors have length %d, statistics have %d",
			ErrShapeMismatch, alen, st.Length)
	}

	// Mismatching positions only enter through the aggregate
	// and the mean corrections.
	result := st.SumM2S2
	for p := 0; p != alen; p++ {
		s := a.set.Symbol(i, p)
		if s == b.set.Symbol(j, p) {
			value := v.value(s, p)
			result += value * value / st.Variance[st.Index(p, s)]
		}
	}
	result += a.cache.meanCorrection[i] + b.cache.meanCorrection[j]

	if m == normalizedMode {
		result /= a.cache.sqrtDiag[i] * b.cache.sqrtDiag[j]
	}
	return result, nil
}
