package mutate

import "errors"

var (
	// ErrNonFinite is returned when a scale, ratio or offset contains NaN or Inf.
	ErrNonFinite = errors.New("non-finite transform value")
	// ErrNonPositive is returned for zero or negative scale factors.
	ErrNonPositive = errors.New("scale factor must be positive")
)
