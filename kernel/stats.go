package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"bitbucket.org/dtolpin/salzberg/estimate"
	"bitbucket.org/dtolpin/salzberg/features"
	"bitbucket.org/dtolpin/salzberg/priors"
)

const (
	// Smaller variances are numerical noise and are set to 1.
	varianceFloor = 1e-14
	// Replaces a zero square root of the self-similarity.
	diagFloor = 1e-16
)

// valuer computes the reweighted match indicator of a symbol at a
// position: the positive-class probability relative to the
// prior-weighted mixture of both classes.
type valuer struct {
	est    estimate.Estimate
	priors priors.Priors
}

func (v valuer) value(sym features.Symbol, pos int) float64 {
	thetaP := 1 / v.est.LogDerivativePos(sym, pos)
	thetaN := 1 / v.est.LogDerivativeNeg(sym, pos)
	return thetaP / (v.priors.Pos*thetaP + v.priors.Neg*thetaN)
}

// Statistics are the per position-symbol mean and variance of the
// reweighted match indicator over the fitting set. Statistics are
// read-only once fitted.
type Statistics struct {
	Length     int
	NumSymbols int
	Mean       []float64
	Variance   []float64
	// SumM2S2 is the sum of Mean[i]^2/Variance[i].
	SumM2S2 float64
}

// Index is the linear address of a symbol at a position.
func (s *Statistics) Index(pos int, sym features.Symbol) int {
	return pos*s.NumSymbols + int(sym)
}

// fitStatistics accumulates the statistics over all vectors of f.
// f must be non-empty and of uniform length.
func fitStatistics(f features.Features, v valuer) (*Statistics, error) {
	length, err := features.Length(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	n := f.NumVectors()
	st := &Statistics{
		Length:     length,
		NumSymbols: f.NumSymbols(),
		Mean:       make([]float64, length*f.NumSymbols()),
		Variance:   make([]float64, length*f.NumSymbols()),
	}
	nv := float64(n)

	// mean
	for i := 0; i != n; i++ {
		for j := 0; j != length; j++ {
			s := f.Symbol(i, j)
			st.Mean[st.Index(j, s)] += v.value(s, j) / nv
		}
	}

	// Variance over all symbols of the alphabet: a symbol absent
	// at a position has value 0 and deviates from its mean by the
	// mean.
	for i := 0; i != n; i++ {
		for j := 0; j != length; j++ {
			s := f.Symbol(i, j)
			for k := 0; k != st.NumSymbols; k++ {
				idx := st.Index(j, features.Symbol(k))
				if features.Symbol(k) != s {
					st.Variance[idx] += st.Mean[idx] * st.Mean[idx] / nv
				} else {
					d := v.value(s, j) - st.Mean[idx]
					st.Variance[idx] += d * d / nv
				}
			}
		}
	}

	for i := range st.Variance {
		if st.Variance[i] < varianceFloor {
			st.Variance[i] = 1
		}
	}
	ratio := floats.DivTo(make([]float64, len(st.Mean)), st.Mean, st.Variance)
	st.SumM2S2 = floats.Dot(ratio, st.Mean)

	return st, nil
}
