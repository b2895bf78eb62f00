package bonemap

import "errors"

// Sentinel kinds for bone resolution errors.
var (
	ErrInvalidTable = errors.New("invalid bone name table")
	ErrUnknownNode  = errors.New("mapped node not found in skeleton")
)
