package avatar

import "errors"

// Sentinel kinds for avatar errors.
var (
	ErrNoSkeleton   = errors.New("avatar has no skeleton")
	ErrNoDescriptor = errors.New("avatar has no VR descriptor")
	ErrNoComponent  = errors.New("avatar has no scaler component")
)
