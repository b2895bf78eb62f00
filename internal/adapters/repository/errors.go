package repository

import "errors"

// Sentinel kinds for avatar store errors.
var (
	ErrNotFound    = errors.New("avatar document not found")
	ErrDecode      = errors.New("invalid avatar document")
	ErrInvalidName = errors.New("invalid avatar document name")

	ErrAmbiguousJoint = errors.New("bound joint shares its path with a sibling")
)
