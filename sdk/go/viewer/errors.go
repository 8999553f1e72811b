package viewer

import "errors"

// Viewer-specific errors
var (
	ErrViewerClosed     = errors.New("viewer is closed")
	ErrNotConnected     = errors.New("viewer is not connected")
	ErrAlreadyConnected = errors.New("viewer is already connected")
	ErrInvalidConfig    = errors.New("invalid viewer configuration")
)
