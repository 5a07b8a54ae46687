// Package priors holds class prior probabilities used to mix the
// positive and negative estimates.
package priors

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLabels is returned when no label is +1 or -1.
	ErrNoLabels = errors.New("no positive or negative labels")
	// ErrInvalid is returned for negative or all-zero priors.
	ErrInvalid = errors.New("invalid priors")
)

// Priors are the class weights.
type Priors struct {
	Pos float64 `yaml:"pos"`
	Neg float64 `yaml:"neg"`
}

// Default is the uniform prior.
func Default() Priors {
	return Priors{Pos: 0.5, Neg: 0.5}
}

func (p Priors) Validate() error {
	if !(p.Pos >= 0 && p.Neg >= 0 && p.Pos+p.Neg > 0) {
		return fmt.Errorf("%w: pos=%v neg=%v", ErrInvalid, p.Pos, p.Neg)
	}
	return nil
}

// Counts are the numbers of positive and negative labels.
type Counts struct {
	Pos, Neg int
}

// Count counts labels equal to +1 and -1, other labels are ignored.
func Count(labels []float64) Counts {
	var c Counts
	for _, l := range labels {
		switch l {
		case 1:
			c.Pos++
		case -1:
			c.Neg++
		}
	}
	return c
}

// FromLabels returns the class frequencies among the labels.
func FromLabels(labels []float64) (Priors, Counts, error) {
	c := Count(labels)
	n := c.Pos + c.Neg
	if n == 0 {
		return Priors{}, c, ErrNoLabels
	}
	return Priors{
		Pos: float64(c.Pos) / float64(n),
		Neg: float64(c.Neg) / float64(n),
	}, c, nil
}
