package posefix

import "errors"

var (
	// ErrMissingBones is returned when a fix needs a role that is not bound.
	ErrMissingBones = errors.New("bones required for pose fix are missing")
	// ErrInvalidSpread is returned for a spread factor outside [0, MaxSpreadFactor].
	ErrInvalidSpread = errors.New("invalid finger spread factor")
)
