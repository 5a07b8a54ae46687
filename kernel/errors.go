package kernel

import "errors"

var (
	// ErrConfiguration is returned by Init when the estimate is
	// missing or invalid, or does not match the feature geometry.
	ErrConfiguration = errors.New("kernel configuration")
	// ErrShapeMismatch is returned when vectors differ in length
	// from each other or from the fitted statistics.
	ErrShapeMismatch = errors.New("vector shape mismatch")
	// ErrPrecondition is returned when the kernel is queried in a
	// state that does not allow the query, e.g. before Init.
	ErrPrecondition = errors.New("kernel precondition violated")
	// ErrUnsupported is returned by LoadInit and SaveInit.
	ErrUnsupported = errors.New("not supported")
)
