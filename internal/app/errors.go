package app

import "errors"

// Sentinel kinds for session errors.
var (
	// ErrPreviewActive is returned when a preview is already open on the session.
	ErrPreviewActive = errors.New("a preview is already active")
	// ErrNoPreview is returned when applying or cancelling with no preview open.
	ErrNoPreview = errors.New("no preview is active")
	// ErrPreviewMismatch is returned when the id does not name the open preview.
	ErrPreviewMismatch = errors.New("preview id does not match the active preview")
	// ErrNoDescriptor is returned by the build hook for an avatar without a VR descriptor.
	ErrNoDescriptor = errors.New("build requires a VR descriptor")
)
