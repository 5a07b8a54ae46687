// Package features holds fixed-length symbol sequences, the input
// of the word-string kernel.
package features

import (
	"errors"
	"fmt"
)

// Symbol is a position value, an index into the alphabet.
type Symbol uint16

var (
	// ErrRagged is returned when sequences of a set differ in length.
	ErrRagged = errors.New("sequences differ in length")
	// ErrSymbol is returned for a symbol outside the alphabet.
	ErrSymbol = errors.New("symbol out of alphabet")
)

// Features is a set of symbol vectors addressed by index.
type Features interface {
	NumVectors() int
	VectorLength(i int) int
	NumSymbols() int
	Symbol(i, pos int) Symbol
}

// Strings is an in-memory set of equal-length sequences.
type Strings struct {
	numSymbols int
	seqs       [][]Symbol
}

// NewStrings checks that all sequences are of the same length
// and use only the first numSymbols symbols.
func NewStrings(numSymbols int, seqs [][]Symbol) (*Strings, error) {
	if numSymbols <= 0 {
		return nil, fmt.Errorf("%w: alphabet size %d", ErrSymbol, numSymbols)
	}
	for i, seq := range seqs {
		if len(seq) != len(seqs[0]) {
			return nil, fmt.Errorf("%w: vector %d has length %d, want %d",
				ErrRagged, i, len(seq), len(seqs[0]))
		}
		for j, s := range seq {
			if int(s) >= numSymbols {
				return nil, fmt.Errorf("%w: vector %d, position %d: %d >= %d",
					ErrSymbol, i, j, s, numSymbols)
			}
		}
	}
	return &Strings{numSymbols: numSymbols, seqs: seqs}, nil
}

func (f *Strings) NumVectors() int          { return len(f.seqs) }
func (f *Strings) VectorLength(i int) int   { return len(f.seqs[i]) }
func (f *Strings) NumSymbols() int          { return f.numSymbols }
func (f *Strings) Symbol(i, pos int) Symbol { return f.seqs[i][pos] }

// Vector returns the i-th sequence. The slice is shared, not copied.
func (f *Strings) Vector(i int) []Symbol { return f.seqs[i] }

// Length returns the common sequence length, 0 for an empty set.
func (f *Strings) Length() int {
	if len(f.seqs) == 0 {
		return 0
	}
	return len(f.seqs[0])
}

// Length returns the length shared by all vectors of f, or an
// error if the vectors are ragged. An empty set has length 0.
func Length(f Features) (int, error) {
	n := f.NumVectors()
	if n == 0 {
		return 0, nil
	}
	l := f.VectorLength(0)
	for i := 1; i != n; i++ {
		if f.VectorLength(i) != l {
			return 0, fmt.Errorf("%w: vector %d has length %d, want %d",
				ErrRagged, i, f.VectorLength(i), l)
		}
	}
	return l, nil
}
