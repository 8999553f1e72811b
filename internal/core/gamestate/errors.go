package gamestate

import "errors"

// Game state errors
var (
	// Component errors

	ErrComponentNotFound = errors.New("component not found")
	ErrNilComponent      = errors.New("nil component")
	ErrUnknownKind       = errors.New("unknown component kind")

	// Entity errors

	ErrEntityExists   = errors.New("entity already exists")
	ErrEntityNotFound = errors.New("entity not found")
	ErrNilEntity      = errors.New("nil entity")

	// Template errors

	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidTemplate  = errors.New("invalid template")
)
