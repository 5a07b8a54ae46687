package kernel

import (
	"fmt"
	"math"

	"bitbucket.org/dtolpin/salzberg/features"
)

// normCache holds the per-vector normalization state of one side.
type normCache struct {
	// square root of the raw self-similarity
	sqrtDiag []float64
	// sum over positions of -value*mean/variance
	meanCorrection []float64
}

type slotKind int

const (
	slotEmpty slotKind = iota
	slotOwned
	slotAliasOfLeft
)

// cacheSlot tags the ownership of a side's cache. An aliased right
// slot holds no cache of its own and resolves to the left slot.
type cacheSlot struct {
	kind  slotKind
	cache *normCache
}

func owned(c *normCache) cacheSlot { return cacheSlot{kind: slotOwned, cache: c} }
func aliasOfLeft() cacheSlot       { return cacheSlot{kind: slotAliasOfLeft} }

// release drops the slot's cache. An alias only forgets the
// reference, the left slot keeps its cache.
func (s *cacheSlot) release() {
	switch s.kind {
	case slotOwned:
		s.cache = nil
	case slotAliasOfLeft:
		// the left slot owns the cache
	}
	s.kind = slotEmpty
}

// buildCache computes the mean corrections and then the square roots
// of the raw self-similarities of all vectors in f.
func buildCache(f features.Features, st *Statistics, v valuer) (*normCache, error) {
	n := f.NumVectors()
	c := &normCache{
		sqrtDiag:       make([]float64, n),
		meanCorrection: make([]float64, n),
	}

	for i := 0; i != n; i++ {
		if l := f.VectorLength(i); l != st.Length {
			return nil, fmt.Errorf("%w: vector %d has length %d, statistics have %d",
				ErrShapeMismatch, i, l, st.Length)
		}
		corr := 0.
		for j := 0; j != st.Length; j++ {
			s := f.Symbol(i, j)
			idx := st.Index(j, s)
			corr -= v.value(s, j) * st.Mean[idx] / st.Variance[idx]
		}
		c.meanCorrection[i] = corr
	}

	self := side{f, c}
	for i := 0; i != n; i++ {
		raw, err := evaluate(self, self, st, v, i, i, rawMode)
		if err != nil {
			return nil, err
		}
		// The self-similarity is a sum of squares, a negative
		// value is rounding.
		d := math.Sqrt(math.Max(raw, 0))
		if d == 0 {
			d = diagFloor
		}
		c.sqrtDiag[i] = d
	}
	return c, nil
}
