package sim

import "errors"

// Simulation-specific errors
var (
	ErrSimulationRunning = errors.New("simulation is already running")
	ErrNilSystem         = errors.New("system is nil")
	ErrInvalidTickRate   = errors.New("tick rate must be positive")
)
