package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrMaxViewersReached    = errors.New("maximum viewers reached")
	ErrViewerNotFound       = errors.New("viewer not found")
	ErrNilGameState         = errors.New("game state is nil")
	ErrNoTransports         = errors.New("no transports configured")
	ErrInvalidConfig        = errors.New("invalid server configuration")
)
