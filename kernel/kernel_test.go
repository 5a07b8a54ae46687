package kernel

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/dtolpin/salzberg/estimate"
	"bitbucket.org/dtolpin/salzberg/features"
	"bitbucket.org/dtolpin/salzberg/priors"
)

const eps = 1e-12

// binary is an estimate over the alphabet {0, 1} with value 2 for
// symbol 0 and value 1 for symbol 1 under uniform priors.
type binary struct {
	valid   bool
	nparams int
}

func (e *binary) Valid() bool    { return e.valid }
func (e *binary) NumParams() int { return e.nparams }

func (e *binary) LogDerivativePos(features.Symbol, int) float64 { return 1 }

func (e *binary) LogDerivativeNeg(s features.Symbol, _ int) float64 {
	if s == 0 {
		return math.Inf(1)
	}
	return 1
}

// mutable is a feature set whose vectors can change after Init.
type mutable struct {
	seqs [][]features.Symbol
}

func (f *mutable) NumVectors() int                   { return len(f.seqs) }
func (f *mutable) VectorLength(i int) int            { return len(f.seqs[i]) }
func (f *mutable) NumSymbols() int                   { return 2 }
func (f *mutable) Symbol(i, pos int) features.Symbol { return f.seqs[i][pos] }

// pair is a feature set held by value, two vectors of length 2.
type pair [2][2]features.Symbol

func (p pair) NumVectors() int                   { return len(p) }
func (p pair) VectorLength(i int) int            { return len(p[i]) }
func (p pair) NumSymbols() int                   { return 2 }
func (p pair) Symbol(i, pos int) features.Symbol { return p[i][pos] }

func scenario(t *testing.T) (*Kernel, *features.Strings) {
	f, err := features.NewStrings(2, [][]features.Symbol{{0, 1}, {1, 0}, {0, 0}})
	require.NoError(t, err)
	k, err := New(&binary{valid: true, nparams: 8})
	require.NoError(t, err)
	return k, f
}

func TestScenario(t *testing.T) {
	k, f := scenario(t)
	require.NoError(t, k.Init(f, f))
	assert.Equal(t, Ready, k.State())
	assert.True(t, k.Symmetric())

	st, err := k.Statistics()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4. / 3, 1. / 3, 4. / 3, 1. / 3}, st.Mean, eps)
	assert.InDeltaSlice(t, []float64{8. / 9, 2. / 9, 8. / 9, 2. / 9}, st.Variance, eps)
	assert.InDelta(t, 5., st.SumM2S2, eps)

	assert.InDeltaSlice(t, []float64{-4.5, -4.5, -6}, k.leftCache().meanCorrection, eps)
	assert.InDeltaSlice(t,
		[]float64{math.Sqrt(5), math.Sqrt(5), math.Sqrt(2)},
		k.leftCache().sqrtDiag, eps)
	assert.Same(t, k.leftCache(), k.rightCache())

	want := [][]float64{
		{1, -0.8, -1 / math.Sqrt(10)},
		{-0.8, 1, -1 / math.Sqrt(10)},
		{-1 / math.Sqrt(10), -1 / math.Sqrt(10), 1},
	}
	for i := range want {
		for j := range want[i] {
			got, err := k.Compute(i, j)
			require.NoError(t, err)
			assert.InDelta(t, want[i][j], got, eps, "K(%d, %d)", i, j)
		}
	}
}

func randomTable(rng *rand.Rand, length, nsym int) *estimate.Table {
	row := func() []float64 {
		p := make([]float64, nsym)
		sum := 0.
		for s := range p {
			p[s] = 0.1 + rng.Float64()
			sum += p[s]
		}
		for s := range p {
			p[s] /= sum
		}
		return p
	}
	t := &estimate.Table{Length: length, NumSymbols: nsym}
	for j := 0; j != length; j++ {
		t.Pos = append(t.Pos, row())
		t.Neg = append(t.Neg, row())
	}
	return t
}

func randomStrings(t *testing.T, rng *rand.Rand, n, length, nsym int) *features.Strings {
	seqs := make([][]features.Symbol, n)
	for i := range seqs {
		seqs[i] = make([]features.Symbol, length)
		for j := range seqs[i] {
			seqs[i][j] = features.Symbol(rng.Intn(nsym))
		}
	}
	f, err := features.NewStrings(nsym, seqs)
	require.NoError(t, err)
	return f
}

func TestSelfSimilarityAndSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const (
		n      = 12
		length = 8
		nsym   = 4
	)
	f := randomStrings(t, rng, n, length, nsym)
	k, err := New(randomTable(rng, length, nsym), WithPriors(priors.Priors{Pos: 0.3, Neg: 0.7}))
	require.NoError(t, err)
	require.NoError(t, k.Init(f, f))

	for i := 0; i != n; i++ {
		kii, err := k.Compute(i, i)
		require.NoError(t, err)
		assert.InDelta(t, 1, kii, 1e-9, "K(%d, %d)", i, i)
		for j := 0; j != n; j++ {
			kij, err := k.Compute(i, j)
			require.NoError(t, err)
			kji, err := k.Compute(j, i)
			require.NoError(t, err)
			assert.InDelta(t, kij, kji, eps, "K(%d, %d)", i, j)
			assert.False(t, math.IsNaN(kij))
		}
	}
}

func TestCrossBinding(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	const (
		length = 6
		nsym   = 4
	)
	train := randomStrings(t, rng, 10, length, nsym)
	test, err := features.NewStrings(nsym, [][]features.Symbol{
		train.Vector(3),
		train.Vector(7),
	})
	require.NoError(t, err)

	k, err := New(randomTable(rng, length, nsym))
	require.NoError(t, err)
	require.NoError(t, k.Init(train, train))
	k37, err := k.Compute(3, 7)
	require.NoError(t, err)
	st, err := k.Statistics()
	require.NoError(t, err)

	require.NoError(t, k.Init(train, test))
	assert.False(t, k.Symmetric())
	assert.Equal(t, slotOwned, k.right.kind)
	assert.NotSame(t, k.leftCache(), k.rightCache())
	again, err := k.Statistics()
	require.NoError(t, err)
	assert.Same(t, st, again, "statistics are reused on the same left set")
	assert.Equal(t, 10, k.NumLHS())
	assert.Equal(t, 2, k.NumRHS())

	// copies of training vectors keep their similarities
	k33, err := k.Compute(3, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, k33, 1e-9)
	k37x, err := k.Compute(3, 1)
	require.NoError(t, err)
	assert.InDelta(t, k37, k37x, 1e-9)

	// a new left set refits the statistics
	require.NoError(t, k.Init(test, test))
	other, err := k.Statistics()
	require.NoError(t, err)
	assert.NotSame(t, st, other)
}

func TestLifecycle(t *testing.T) {
	k, f := scenario(t)
	assert.Equal(t, Uninitialized, k.State())
	_, err := k.Compute(0, 0)
	assert.ErrorIs(t, err, ErrPrecondition)
	_, err = k.Statistics()
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, 0, k.NumLHS())

	var first [3][3]float64
	for round := 0; round != 3; round++ {
		require.NoError(t, k.Init(f, f), "round %d", round)
		assert.Equal(t, slotOwned, k.left.kind)
		assert.Equal(t, slotAliasOfLeft, k.right.kind)
		for i := 0; i != 3; i++ {
			for j := 0; j != 3; j++ {
				v, err := k.Compute(i, j)
				require.NoError(t, err)
				if round == 0 {
					first[i][j] = v
				} else {
					assert.Equal(t, first[i][j], v, "round %d K(%d, %d)", round, i, j)
				}
			}
		}
		k.Cleanup()
		assert.Equal(t, Uninitialized, k.State())
		assert.Equal(t, slotEmpty, k.left.kind)
		assert.Equal(t, slotEmpty, k.right.kind)
		assert.Nil(t, k.left.cache)
		assert.Nil(t, k.right.cache)
		_, err = k.Statistics()
		assert.ErrorIs(t, err, ErrPrecondition)
		k.Cleanup()
	}

	_, err = k.Compute(0, 0)
	assert.ErrorIs(t, err, ErrPrecondition)

	require.NoError(t, k.Init(f, f))
	_, err = k.Compute(3, 0)
	assert.ErrorIs(t, err, ErrPrecondition)
	_, err = k.Compute(0, -1)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestVarianceFloor(t *testing.T) {
	// position 1 holds symbol 1 in every vector
	f, err := features.NewStrings(2, [][]features.Symbol{{0, 1}, {1, 1}, {0, 1}})
	require.NoError(t, err)
	k, err := New(&binary{valid: true, nparams: 8})
	require.NoError(t, err)
	require.NoError(t, k.Init(f, f))

	st, err := k.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 1., st.Variance[st.Index(1, 0)])
	assert.Equal(t, 1., st.Variance[st.Index(1, 1)])
	for i := 0; i != 3; i++ {
		for j := 0; j != 3; j++ {
			v, err := k.Compute(i, j)
			require.NoError(t, err)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "K(%d, %d) = %v", i, j, v)
		}
	}
}

func TestShapeMismatch(t *testing.T) {
	l := &mutable{seqs: [][]features.Symbol{{0, 1}, {1, 0}, {0, 0}}}
	r := &mutable{seqs: [][]features.Symbol{{0, 1}, {1, 1}}}
	k, err := New(&binary{valid: true, nparams: 8})
	require.NoError(t, err)
	require.NoError(t, k.Init(l, r))

	before, err := k.Compute(0, 0)
	require.NoError(t, err)
	corr := append([]float64(nil), k.rightCache().meanCorrection...)

	r.seqs[1] = append(r.seqs[1], 0)
	_, err = k.Compute(0, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	assert.Equal(t, Ready, k.State())
	after, err := k.Compute(0, 0)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, corr, k.rightCache().meanCorrection)

	// binding a right set of another length fails
	err = k.Init(l, r)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Equal(t, Uninitialized, k.State())
}

func TestConfigurationError(t *testing.T) {
	f, err := features.NewStrings(2, [][]features.Symbol{{0, 1}, {1, 0}})
	require.NoError(t, err)
	g, err := features.NewStrings(3, [][]features.Symbol{{0, 2}})
	require.NoError(t, err)
	empty, err := features.NewStrings(2, nil)
	require.NoError(t, err)
	long, err := features.NewStrings(2, [][]features.Symbol{{0, 1, 0, 1}, {1, 1, 0, 0}})
	require.NoError(t, err)
	uniform := []float64{0.25, 0.25, 0.25, 0.25}
	wide := &estimate.Table{
		Length:     2,
		NumSymbols: 4,
		Pos:        [][]float64{uniform, uniform},
		Neg:        [][]float64{uniform, uniform},
	}
	require.NoError(t, wide.Validate())

	for i, c := range []struct {
		est  estimate.Estimate
		l, r features.Features
	}{
		{nil, f, f},
		{&binary{valid: false, nparams: 8}, f, f},
		{&binary{valid: true, nparams: 6}, f, f},
		{&binary{valid: true, nparams: 10}, f, g},
		{&binary{valid: true, nparams: 8}, empty, f},
		{&binary{valid: true, nparams: 8}, nil, f},
		{(*estimate.Table)(nil), f, f},
		// same number of parameters, different geometry
		{wide, long, long},
	} {
		k, err := New(c.est)
		require.NoError(t, err)
		err = k.Init(c.l, c.r)
		assert.ErrorIs(t, err, ErrConfiguration, "%d", i)
		assert.Equal(t, Uninitialized, k.State(), "%d", i)
		_, err = k.Statistics()
		assert.ErrorIs(t, err, ErrPrecondition, "%d", i)
	}

	// a failed rebinding discards everything
	k, err := New(&binary{valid: true, nparams: 8})
	require.NoError(t, err)
	require.NoError(t, k.Init(f, f))
	assert.ErrorIs(t, k.Init(f, g), ErrConfiguration)
	assert.Equal(t, Uninitialized, k.State())
	assert.Nil(t, k.left.cache)
	_, err = k.Statistics()
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestValueFeatures(t *testing.T) {
	p := pair{{0, 1}, {1, 0}}
	q := p
	k, err := New(&binary{valid: true, nparams: 8})
	require.NoError(t, err)

	require.NoError(t, k.Init(p, q))
	assert.False(t, k.Symmetric(), "equal content is not the same set")
	assert.NotSame(t, k.leftCache(), k.rightCache())
	st, err := k.Statistics()
	require.NoError(t, err)

	require.NoError(t, k.Init(p, p))
	again, err := k.Statistics()
	require.NoError(t, err)
	assert.NotSame(t, st, again)

	v, err := k.Compute(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, v, eps)
}

func TestPriors(t *testing.T) {
	k, err := New(&binary{valid: true, nparams: 8},
		WithLabels([]float64{1, 1, 1, -1}))
	require.NoError(t, err)
	assert.Equal(t, priors.Priors{Pos: 0.75, Neg: 0.25}, k.Priors())

	_, err = New(&binary{valid: true, nparams: 8}, WithLabels([]float64{0}))
	assert.ErrorIs(t, err, priors.ErrNoLabels)
	_, err = New(&binary{valid: true, nparams: 8}, WithPriors(priors.Priors{}))
	assert.ErrorIs(t, err, priors.ErrInvalid)

	_, f := scenario(t)
	require.NoError(t, k.Init(f, f))
	require.NoError(t, k.SetPriors(k.Priors()))
	assert.Equal(t, Ready, k.State())
	require.NoError(t, k.SetPriors(priors.Default()))
	assert.Equal(t, Uninitialized, k.State())
	assert.Error(t, k.SetPriors(priors.Priors{Pos: -1, Neg: 1}))
	assert.Equal(t, priors.Default(), k.Priors())
}

func TestLoadSaveInit(t *testing.T) {
	k, _ := scenario(t)
	var buf bytes.Buffer
	assert.ErrorIs(t, k.SaveInit(&buf), ErrUnsupported)
	assert.ErrorIs(t, k.LoadInit(&buf), ErrUnsupported)
	assert.Equal(t, "SalzbergWord", k.Name())
}

func TestStateString(t *testing.T) {
	for s, name := range map[State]string{
		Uninitialized: "uninitialized",
		StatsFitted:   "stats-fitted",
		LeftCached:    "left-cached",
		RightCached:   "right-cached",
		Aliased:       "aliased",
		Ready:         "ready",
		State(42):     "State(42)",
	} {
		assert.Equal(t, name, s.String())
	}
}
