package kernel

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// MatrixOption configures kernel matrix computation.
type MatrixOption func(*matrixOptions)

type matrixOptions struct {
	workers int
}

// WithWorkers limits the number of rows computed concurrently
// (default GOMAXPROCS).
func WithWorkers(n int) MatrixOption { return func(o *matrixOptions) { o.workers = n } }

func matrixOpts(opts []MatrixOption) matrixOptions {
	o := matrixOptions{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// Matrix computes the kernel matrix of a ready kernel, rows are left
// vectors and columns are right vectors. The kernel cannot be
// rebound while the matrix is computed.
func Matrix(ctx context.Context, k *Kernel, opts ...MatrixOption) (*mat.Dense, error) {
	o := matrixOpts(opts)
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.ready(); err != nil {
		return nil, err
	}

	n, m := k.lhs.NumVectors(), k.rhs.NumVectors()
	if n == 0 || m == 0 {
		return nil, fmt.Errorf("%w: empty %dx%d matrix", ErrPrecondition, n, m)
	}
	out := mat.NewDense(n, m, nil)
	err := rows(ctx, n, o.workers, func(i int) error {
		for j := 0; j != m; j++ {
			v, err := k.compute(i, j)
			if err != nil {
				return err
			}
			out.Set(i, j, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Gram computes the symmetric kernel matrix of a kernel bound to the
// same set on both sides, evaluating the upper triangle only.
func Gram(ctx context.Context, k *Kernel, opts ...MatrixOption) (*mat.SymDense, error) {
	o := matrixOpts(opts)
	k.mu.RLock()
	defer k.mu.RUnlock()
	if err := k.ready(); err != nil {
		return nil, err
	}
	if k.right.kind != slotAliasOfLeft {
		return nil, fmt.Errorf("%w: gram matrix of distinct sets", ErrPrecondition)
	}

	n := k.lhs.NumVectors()
	out := mat.NewSymDense(n, nil)
	err := rows(ctx, n, o.workers, func(i int) error {
		for j := i; j != n; j++ {
			v, err := k.compute(i, j)
			if err != nil {
				return err
			}
			out.SetSym(i, j, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (k *Kernel) ready() error {
	if k.state != Ready {
		return fmt.Errorf("%w: matrix in state %v", ErrPrecondition, k.state)
	}
	return nil
}

// rows calls row for 0..n-1 on at most workers goroutines.
func rows(ctx context.Context, n, workers int, row func(i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i != n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return row(i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// nothing may have started if ctx was done
	return ctx.Err()
}
