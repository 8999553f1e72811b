package types

import (
	"fmt"
	"math"
)

// EntityID is a stable, process-unique handle for a simulated entity.
// The id never changes for the lifetime of the entity. The core does not
// mint ids on its own; callers (or the gamestate factory) decide how ids
// are allocated.
type EntityID uint64

func (id EntityID) String() string {
	return fmt.Sprintf("entity-%d", uint64(id))
}

// PlayerID identifies a controlling player.
type PlayerID uint32

// WorldPos is a point in simulation space.
type WorldPos struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Pos is shorthand for a ground-level position.
func Pos(x, y float64) WorldPos {
	return WorldPos{X: x, Y: y}
}

func (p WorldPos) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

// Add returns the component-wise sum of p and q.
func (p WorldPos) Add(q WorldPos) WorldPos {
	return WorldPos{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns the component-wise difference of p and q.
func (p WorldPos) Sub(q WorldPos) WorldPos {
	return WorldPos{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Scale returns p with every coordinate multiplied by f.
func (p WorldPos) Scale(f float64) WorldPos {
	return WorldPos{X: p.X * f, Y: p.Y * f, Z: p.Z * f}
}

// Len returns the euclidean length of p taken as a vector.
func (p WorldPos) Len() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Dist returns the euclidean distance between p and q.
func (p WorldPos) Dist(q WorldPos) float64 {
	return p.Sub(q).Len()
}
