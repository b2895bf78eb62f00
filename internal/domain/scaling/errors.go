package scaling

import "errors"

var (
	// ErrNotHumanoid is returned when a required humanoid role is unbound.
	ErrNotHumanoid = errors.New("skeleton is not a valid humanoid")
	// ErrInvalidParameters is returned when parameters are outside their domain.
	ErrInvalidParameters = errors.New("invalid scaling parameters")
	// ErrApply is returned when a computed change could not be written; the
	// skeleton is restored before it is returned.
	ErrApply = errors.New("apply scaling")
)
