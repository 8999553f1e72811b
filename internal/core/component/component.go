package component

import "github.com/openrts/openrts/internal/core/types"

// Component is a typed unit of entity state. Implementations are treated as
// immutable once attached: mutation happens by building a changed value and
// re-attaching it under the same kind.
type Component interface {
	// Kind reports the discriminant this component registers under.
	// It is fixed at construction.
	Kind() Kind
	// Copy returns a structurally independent deep copy. Clone paths rely
	// on this; a copy must never share mutable state with its source.
	Copy() Component
}

// Positional is the capability view of components that carry drawable
// placement. Consumers obtain it with a checked type assertion instead of
// downcasting to a concrete type.
type Positional interface {
	Component
	// Positions returns the waypoint path in order. The returned slice is
	// the caller's to keep.
	Positions() []types.WorldPos
	// Angles returns the facing angle, in degrees, for each waypoint.
	Angles() []float64
}
