// Package model is Gaussian process regression over symbol
// sequences, with the word-string kernel as the covariance.
package model

import (
	"fmt"

	"bitbucket.org/dtolpin/gogp/gp"
	adkernel "bitbucket.org/dtolpin/gogp/kernel/ad"
	infermodel "bitbucket.org/dtolpin/infergo/model"
	"gonum.org/v1/gonum/stat"

	"bitbucket.org/dtolpin/salzberg/estimate"
	"bitbucket.org/dtolpin/salzberg/features"
	"bitbucket.org/dtolpin/salzberg/kernel"
)

// The GP sees vector indices rather than vectors. Training vectors
// are 0, 1, ..., test vectors are -1, -2, ....
type similarity struct {
	train *kernel.Kernel // bound to (train, train)
	cross *kernel.Kernel // bound to (train, test)
}

var _ infermodel.Model = &similarity{}

func (s *similarity) Observe(x []float64) float64 {
	const (
		xa = iota // first point
		xb        // second point
	)

	a, b := int(x[xa]), int(x[xb])
	var (
		v   float64
		err error
	)
	switch {
	case a >= 0 && b >= 0:
		v, err = s.train.Compute(a, b)
	case a >= 0:
		v, err = s.cross.Compute(a, -b-1)
	case b >= 0:
		v, err = s.cross.Compute(b, -a-1)
	case a == b:
		// normalized self-similarity
		v = 1
	default:
		// Predictions are marginal, test points are not
		// correlated with each other.
		v = 0
	}
	if err != nil {
		panic(fmt.Errorf("similarity (%d, %d): %v", a, b, err))
	}
	return v
}

// The kernel has no parameters to differentiate.
func (s *similarity) Gradient() []float64 {
	return []float64{0, 0}
}

func (s *similarity) NTheta() int { return 0 }

// Model is a GP regressor over sequences.
type Model struct {
	Noise float64

	est   estimate.Estimate
	opts  []kernel.Option
	train features.Features
	simil *similarity
	gp    *gp.GP

	// target normalization
	meany, stdy float64
}

// New creates a model; noise is the GP observation noise on
// normalized targets.
func New(est estimate.Estimate, noise float64, opts ...kernel.Option) *Model {
	return &Model{
		Noise: noise,
		est:   est,
		opts:  opts,
	}
}

// Fit absorbs the training sequences and their targets.
func (m *Model) Fit(train features.Features, y []float64) error {
	if train.NumVectors() != len(y) {
		return fmt.Errorf("fit: %d vectors, %d targets", train.NumVectors(), len(y))
	}
	k, err := kernel.New(m.est, m.opts...)
	if err != nil {
		return fmt.Errorf("fit: %v", err)
	}
	if err := k.Init(train, train); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	// Normalize Y
	m.meany, m.stdy = stat.MeanStdDev(y, nil)
	if !(m.stdy > 0) {
		m.stdy = 1
	}
	X := make([][]float64, len(y))
	Y := make([]float64, len(y))
	for i := range y {
		X[i] = []float64{float64(i)}
		Y[i] = (y[i] - m.meany) / m.stdy
	}

	m.train = train
	m.simil = &similarity{train: k}
	m.gp = &gp.GP{
		NDim:  1,
		Simil: m.simil,
		Noise: adkernel.ConstantNoise(m.Noise),
	}
	if err := m.gp.Absorb(X, Y); err != nil {
		return fmt.Errorf("absorb: %v", err)
	}
	return nil
}

// Predict returns the predictive means and standard deviations of
// the test sequences.
func (m *Model) Predict(test features.Features) (mu, sigma []float64, err error) {
	if m.gp == nil {
		return nil, nil, fmt.Errorf("predict: %w: model not fitted", kernel.ErrPrecondition)
	}
	if test.NumVectors() == 0 {
		return nil, nil, nil
	}
	cross, err := kernel.New(m.est, m.opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("predict: %v", err)
	}
	if err := cross.Init(m.train, test); err != nil {
		return nil, nil, fmt.Errorf("predict: %w", err)
	}
	defer cross.Cleanup()
	m.simil.cross = cross
	defer func() { m.simil.cross = nil }()

	Z := make([][]float64, test.NumVectors())
	for i := range Z {
		Z[i] = []float64{float64(-i - 1)}
	}
	mu, sigma, err = m.gp.Produce(Z)
	if err != nil {
		return nil, nil, fmt.Errorf("produce: %v", err)
	}
	for i := range mu {
		mu[i] = mu[i]*m.stdy + m.meany
		sigma[i] *= m.stdy
	}
	return mu, sigma, nil
}

// Kernel returns the kernel bound to the training set, nil before Fit.
func (m *Model) Kernel() *kernel.Kernel {
	if m.simil == nil {
		return nil
	}
	return m.simil.train
}
