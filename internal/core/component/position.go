package component

import "github.com/openrts/openrts/internal/core/types"

var _ Positional = (*Position)(nil)

// Position carries an entity's placement in the world: an ordered waypoint
// path and a facing angle per waypoint. The head of the path is where the
// entity currently stands.
type Position struct {
	path   []types.WorldPos
	facing []float64
}

// NewPosition builds a position from a waypoint path and matching facing
// angles. Both slices are copied. When facing is shorter than path the
// missing angles default to zero.
func NewPosition(path []types.WorldPos, facing []float64) *Position {
	p := &Position{
		path:   make([]types.WorldPos, len(path)),
		facing: make([]float64, len(path)),
	}
	copy(p.path, path)
	copy(p.facing, facing)
	return p
}

// PositionAt builds a single-point position.
func PositionAt(pos types.WorldPos, facing float64) *Position {
	return NewPosition([]types.WorldPos{pos}, []float64{facing})
}

func (p *Position) Kind() Kind { return KindPosition }

func (p *Position) Copy() Component {
	return NewPosition(p.path, p.facing)
}

func (p *Position) Positions() []types.WorldPos {
	out := make([]types.WorldPos, len(p.path))
	copy(out, p.path)
	return out
}

func (p *Position) Angles() []float64 {
	out := make([]float64, len(p.facing))
	copy(out, p.facing)
	return out
}

// Current returns the head of the path, the entity's present placement.
func (p *Position) Current() (types.WorldPos, float64) {
	if len(p.path) == 0 {
		return types.WorldPos{}, 0
	}
	return p.path[0], p.facing[0]
}

// Len returns the number of waypoints.
func (p *Position) Len() int { return len(p.path) }

// Moved returns a new position whose head is replaced by pos and facing.
// The rest of the path is kept as-is.
func (p *Position) Moved(pos types.WorldPos, facing float64) *Position {
	next := NewPosition(p.path, p.facing)
	if len(next.path) == 0 {
		next.path = []types.WorldPos{pos}
		next.facing = []float64{facing}
		return next
	}
	next.path[0] = pos
	next.facing[0] = facing
	return next
}
