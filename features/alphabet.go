package features

import (
	"fmt"
	"strings"
	"unicode"
)

// DNA is the nucleotide alphabet.
const DNA Alphabet = "ACGT"

// Alphabet maps runes to symbols by their position in the string.
type Alphabet string

// Size is the number of symbols.
func (a Alphabet) Size() int {
	return len([]rune(a))
}

// Encode translates a string into symbols. Lower case letters
// match their upper case counterparts when the alphabet has no
// lower case letters of its own.
func (a Alphabet) Encode(s string) ([]Symbol, error) {
	runes := []rune(a)
	seq := make([]Symbol, 0, len(s))
	for i, r := range s {
		k := index(runes, r)
		if k < 0 {
			k = index(runes, unicode.ToUpper(r))
		}
		if k < 0 {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrSymbol, r, i)
		}
		seq = append(seq, Symbol(k))
	}
	return seq, nil
}

func index(runes []rune, r rune) int {
	for i := range runes {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// Decode is the inverse of Encode.
func (a Alphabet) Decode(seq []Symbol) (string, error) {
	runes := []rune(a)
	var b strings.Builder
	for i, s := range seq {
		if int(s) >= len(runes) {
			return "", fmt.Errorf("%w: %d at position %d", ErrSymbol, s, i)
		}
		b.WriteRune(runes[s])
	}
	return b.String(), nil
}

// Strings encodes the lines into a sequence set.
func (a Alphabet) Strings(lines []string) (*Strings, error) {
	seqs := make([][]Symbol, len(lines))
	for i, line := range lines {
		seq, err := a.Encode(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		seqs[i] = seq
	}
	return NewStrings(a.Size(), seqs)
}
