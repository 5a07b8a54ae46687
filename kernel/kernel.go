// Package kernel implements the Salzberg word-string kernel: a
// similarity of fixed-length symbol sequences in which matching
// positions are reweighted by plugin-estimate statistics and the
// result is normalized to unit self-similarity.
//
// A kernel is bound to a left and a right feature set by Init.
// Statistics are fitted on the left set; the per-vector
// normalization is computed for both sides, and shared when both
// sides are the same set.
package kernel

import (
	"fmt"
	"io"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"bitbucket.org/dtolpin/salzberg/estimate"
	"bitbucket.org/dtolpin/salzberg/features"
	"bitbucket.org/dtolpin/salzberg/priors"
)

// State is the stage of the kernel lifecycle.
type State int

const (
	Uninitialized State = iota
	StatsFitted
	LeftCached
	RightCached
	Aliased
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case StatsFitted:
		return "stats-fitted"
	case LeftCached:
		return "left-cached"
	case RightCached:
		return "right-cached"
	case Aliased:
		return "aliased"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Kernel is safe for concurrent Compute calls; Init, Cleanup and
// SetPriors wait for running computations.
type Kernel struct {
	mu sync.RWMutex

	est    estimate.Estimate
	priors priors.Priors
	logger *zap.Logger

	state    State
	lhs, rhs features.Features

	// the set the statistics were fitted on
	fitted features.Features
	stats  *Statistics

	left, right cacheSlot
}

// Option configures a Kernel.
type Option func(*options)

type options struct {
	priors priors.Priors
	labels []float64
	logger *zap.Logger
}

func defaultOptions() options {
	return options{
		priors: priors.Default(),
		logger: zap.NewNop(),
	}
}

// WithPriors sets the class priors (default 0.5/0.5).
func WithPriors(p priors.Priors) Option { return func(o *options) { o.priors = p } }

// WithLabels derives the class priors from the counts of +1 and -1
// labels. Takes precedence over WithPriors.
func WithLabels(labels []float64) Option { return func(o *options) { o.labels = labels } }

// WithLogger sets the logger, no logging by default.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// New creates an unbound kernel over the estimate.
func New(est estimate.Estimate, opts ...Option) (*Kernel, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.labels != nil {
		p, c, err := priors.FromLabels(o.labels)
		if err != nil {
			return nil, fmt.Errorf("priors from labels: %w", err)
		}
		o.logger.Info("priors",
			zap.Float64("pos", p.Pos), zap.Int("npos", c.Pos),
			zap.Float64("neg", p.Neg), zap.Int("nneg", c.Neg))
		o.priors = p
	}
	if err := o.priors.Validate(); err != nil {
		return nil, err
	}
	return &Kernel{
		est:    est,
		priors: o.priors,
		logger: o.logger,
	}, nil
}

// Name is the kernel's name.
func (k *Kernel) Name() string { return "SalzbergWord" }

// State returns the lifecycle state.
func (k *Kernel) State() State {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

// Priors returns the class priors.
func (k *Kernel) Priors() priors.Priors {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.priors
}

// SetPriors changes the class priors. Fitted statistics depend on
// the priors; if the priors change, the kernel is cleaned up and
// must be initialized again.
func (k *Kernel) SetPriors(p priors.Priors) error {
	if err := p.Validate(); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if p != k.priors {
		k.cleanup()
		k.priors = p
	}
	return nil
}

// Init binds the kernel to the left set l and the right set r,
// fitting the statistics on l unless they are already fitted on it,
// and computes the normalization of both sides. On failure the
// kernel is left uninitialized.
func (k *Kernel) Init(l, r features.Features) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.init(l, r); err != nil {
		k.cleanup()
		return err
	}
	return nil
}

func (k *Kernel) init(l, r features.Features) error {
	// Normalization is never reused across bindings.
	k.right.release()
	k.left.release()
	k.lhs, k.rhs = nil, nil

	if err := k.check(l, r); err != nil {
		return err
	}
	v := valuer{k.est, k.priors}

	if k.stats != nil && identical(k.fitted, l) {
		k.logger.Debug("reusing statistics")
	} else {
		k.stats, k.fitted = nil, nil
		k.transition(Uninitialized)
		stats, err := fitStatistics(l, v)
		if err != nil {
			return err
		}
		k.stats, k.fitted = stats, l
		k.logger.Debug("statistics fitted",
			zap.Int("vectors", l.NumVectors()),
			zap.Int("length", stats.Length),
			zap.Int("symbols", stats.NumSymbols),
			zap.Float64("sum_m2_s2", stats.SumM2S2))
	}
	k.transition(StatsFitted)

	left, err := buildCache(l, k.stats, v)
	if err != nil {
		return fmt.Errorf("left: %w", err)
	}
	k.left = owned(left)
	k.transition(LeftCached)

	if identical(l, r) {
		k.right = aliasOfLeft()
		k.transition(Aliased)
	} else {
		right, err := buildCache(r, k.stats, v)
		if err != nil {
			return fmt.Errorf("right: %w", err)
		}
		k.right = owned(right)
		k.transition(RightCached)
	}

	k.lhs, k.rhs = l, r
	k.transition(Ready)
	return nil
}

// check verifies the estimate against the feature geometry.
func (k *Kernel) check(l, r features.Features) error {
	if l == nil || r == nil {
		return fmt.Errorf("%w: missing features", ErrConfiguration)
	}
	if k.est == nil || !k.est.Valid() {
		return fmt.Errorf("%w: no estimate available", ErrConfiguration)
	}
	if l.NumVectors() == 0 {
		return fmt.Errorf("%w: no vectors to fit statistics", ErrConfiguration)
	}
	if l.NumSymbols() != r.NumSymbols() {
		return fmt.Errorf("%w: alphabet sizes %d and %d differ",
			ErrConfiguration, l.NumSymbols(), r.NumSymbols())
	}
	llen := l.VectorLength(0)
	rlen := llen
	if r.NumVectors() > 0 {
		rlen = r.VectorLength(0)
	}
	nparams := llen*l.NumSymbols() + rlen*r.NumSymbols()
	if nparams != k.est.NumParams() {
		return fmt.Errorf("%w: number of parameters of estimate (%d) and feature representation (%d) do not match",
			ErrConfiguration, k.est.NumParams(), nparams)
	}
	if shaped, ok := k.est.(estimate.Shaped); ok {
		length, symbols := shaped.Shape()
		if length != llen || symbols != l.NumSymbols() {
			return fmt.Errorf("%w: estimate of length %d over %d symbols, features of length %d over %d symbols",
				ErrConfiguration, length, symbols, llen, l.NumSymbols())
		}
	}
	return nil
}

func (k *Kernel) transition(s State) {
	k.state = s
	k.logger.Debug("kernel state", zap.Stringer("state", s))
}

// Cleanup releases the statistics and the normalization and
// unbinds the feature sets.
func (k *Kernel) Cleanup() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cleanup()
}

func (k *Kernel) cleanup() {
	k.right.release()
	k.left.release()
	k.stats, k.fitted = nil, nil
	k.lhs, k.rhs = nil, nil
	if k.state != Uninitialized {
		k.transition(Uninitialized)
	}
}

// Compute returns the normalized similarity of left vector i and
// right vector j.
func (k *Kernel) Compute(i, j int) (float64, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.state != Ready {
		return 0, fmt.Errorf("%w: compute in state %v", ErrPrecondition, k.state)
	}
	return k.compute(i, j)
}

// compute assumes the kernel is ready and locked.
func (k *Kernel) compute(i, j int) (float64, error) {
	if i < 0 || i >= k.lhs.NumVectors() || j < 0 || j >= k.rhs.NumVectors() {
		return 0, fmt.Errorf("%w: index (%d, %d) out of %dx%d",
			ErrPrecondition, i, j, k.lhs.NumVectors(), k.rhs.NumVectors())
	}
	return evaluate(
		side{k.lhs, k.leftCache()}, side{k.rhs, k.rightCache()},
		k.stats, valuer{k.est, k.priors}, i, j, normalizedMode)
}

func (k *Kernel) leftCache() *normCache {
	return k.left.cache
}

func (k *Kernel) rightCache() *normCache {
	if k.right.kind == slotAliasOfLeft {
		return k.left.cache
	}
	return k.right.cache
}

// Statistics returns the fitted statistics, which must not be
// modified.
func (k *Kernel) Statistics() (*Statistics, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.stats == nil {
		return nil, fmt.Errorf("%w: statistics not fitted", ErrPrecondition)
	}
	return k.stats, nil
}

// Symmetric reports whether the kernel is ready and bound to the
// same set on both sides.
func (k *Kernel) Symmetric() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state == Ready && k.right.kind == slotAliasOfLeft
}

// NumLHS is the number of left vectors, 0 if unbound.
func (k *Kernel) NumLHS() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.lhs == nil {
		return 0
	}
	return k.lhs.NumVectors()
}

// NumRHS is the number of right vectors, 0 if unbound.
func (k *Kernel) NumRHS() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.rhs == nil {
		return 0
	}
	return k.rhs.NumVectors()
}

// LoadInit is not supported.
func (k *Kernel) LoadInit(r io.Reader) error { return ErrUnsupported }

// SaveInit is not supported.
func (k *Kernel) SaveInit(w io.Writer) error { return ErrUnsupported }

// identical reports whether a and b are the same object. Only
// pointers have identity; values with equal content are distinct
// sets.
func identical(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || t.Kind() != reflect.Ptr {
		return false
	}
	return a == b
}
