// Package estimate provides plugin estimates: per-class positional
// symbol statistics that reweight symbol matches in the kernel.
package estimate

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"bitbucket.org/dtolpin/salzberg/features"
)

// ErrInvalid is returned by Validate and Load for a malformed table.
var ErrInvalid = errors.New("invalid estimate")

// Estimate is the contract the kernel consumes. The log derivatives
// are taken with respect to the model parameter of the symbol at the
// position, for the positive and the negative class model.
type Estimate interface {
	Valid() bool
	NumParams() int
	LogDerivativePos(sym features.Symbol, pos int) float64
	LogDerivativeNeg(sym features.Symbol, pos int) float64
}

// Shaped is implemented by estimates that know the sequence length
// and the alphabet size they model.
type Shaped interface {
	Shape() (length, symbols int)
}

// rowTolerance bounds the deviation of a probability row sum from 1.
const rowTolerance = 1e-6

// Table is a pair of position-specific multinomial models, one per
// class. Pos[j][s] is the probability of symbol s at position j under
// the positive class model. The derivative of the log-likelihood with
// respect to p is 1/p.
type Table struct {
	Length     int         `yaml:"length"`
	NumSymbols int         `yaml:"symbols"`
	Pos        [][]float64 `yaml:"pos"`
	Neg        [][]float64 `yaml:"neg"`
}

// Valid reports whether the table is usable.
func (t *Table) Valid() bool {
	return t != nil && t.Validate() == nil
}

// NumParams is the number of parameters of both models together.
func (t *Table) NumParams() int {
	return 2 * t.Length * t.NumSymbols
}

// Shape returns the sequence length and the alphabet size.
func (t *Table) Shape() (length, symbols int) {
	return t.Length, t.NumSymbols
}

func (t *Table) LogDerivativePos(sym features.Symbol, pos int) float64 {
	return 1 / t.Pos[pos][sym]
}

func (t *Table) LogDerivativeNeg(sym features.Symbol, pos int) float64 {
	return 1 / t.Neg[pos][sym]
}

// Validate checks the shape and the probabilities.
func (t *Table) Validate() error {
	if t.Length <= 0 || t.NumSymbols <= 0 {
		return fmt.Errorf("%w: length %d, symbols %d",
			ErrInvalid, t.Length, t.NumSymbols)
	}
	for _, m := range []struct {
		name string
		p    [][]float64
	}{{"pos", t.Pos}, {"neg", t.Neg}} {
		if len(m.p) != t.Length {
			return fmt.Errorf("%w: %s has %d positions, want %d",
				ErrInvalid, m.name, len(m.p), t.Length)
		}
		for j, row := range m.p {
			if len(row) != t.NumSymbols {
				return fmt.Errorf("%w: %s[%d] has %d symbols, want %d",
					ErrInvalid, m.name, j, len(row), t.NumSymbols)
			}
			sum := 0.
			for s, p := range row {
				if !(p >= 0 && p <= 1) {
					return fmt.Errorf("%w: %s[%d][%d] = %v",
						ErrInvalid, m.name, j, s, p)
				}
				sum += p
			}
			if math.Abs(sum-1) > rowTolerance {
				return fmt.Errorf("%w: %s[%d] sums to %v",
					ErrInvalid, m.name, j, sum)
			}
		}
	}
	// Both zero makes the reweighted match 0/0.
	for j := range t.Pos {
		for s := range t.Pos[j] {
			if t.Pos[j][s] == 0 && t.Neg[j][s] == 0 {
				return fmt.Errorf("%w: symbol %d at position %d impossible in both classes",
					ErrInvalid, s, j)
			}
		}
	}
	return nil
}

// Load reads and validates a table in YAML.
func Load(r io.Reader) (*Table, error) {
	t := &Table{}
	if err := yaml.NewDecoder(r).Decode(t); err != nil {
		return nil, fmt.Errorf("decode estimate: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Save writes the table in YAML.
func (t *Table) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode estimate: %w", err)
	}
	return enc.Close()
}
