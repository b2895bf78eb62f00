package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrClosed = errors.New("job queue closed")
	ErrFull   = errors.New("job queue full")
)
