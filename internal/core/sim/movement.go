package sim

import (
	"math"

	"github.com/openrts/openrts/internal/core/component"
	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/types"
)

// DefaultMoveSpeed is the movement speed in world units per second.
const DefaultMoveSpeed = 4.0

// MovementSystem walks entities along their queued move orders. Each
// tick it advances every entity that has both a position and a command
// queue toward the current waypoint, replacing the position component
// so bound render proxies pick the move up.
type MovementSystem struct {
	speed float64
}

// NewMovementSystem creates a movement system. Non-positive speeds fall
// back to DefaultMoveSpeed.
func NewMovementSystem(speed float64) *MovementSystem {
	if speed <= 0 {
		speed = DefaultMoveSpeed
	}
	return &MovementSystem{speed: speed}
}

func (m *MovementSystem) Name() string { return "movement" }

func (m *MovementSystem) Update(state *gamestate.GameState, dt float64) error {
	state.Each(func(e *gamestate.GameEntity) bool {
		m.advance(e, dt)
		return true
	})
	return nil
}

func (m *MovementSystem) advance(e *gamestate.GameEntity, dt float64) {
	queueComp, err := e.Component(component.KindCommandQueue)
	if err != nil {
		return
	}
	queue, ok := queueComp.(*component.CommandQueue)
	if !ok {
		return
	}
	cmd, ok := queue.Peek()
	if !ok || cmd.Verb != component.VerbMove {
		return
	}

	posComp, err := e.Component(component.KindPosition)
	if err != nil {
		return
	}
	pos, ok := posComp.(*component.Position)
	if !ok {
		return
	}

	current, facing := pos.Current()
	delta := cmd.Target.Sub(current)
	distance := delta.Len()
	if distance > 0 {
		facing = heading(delta)
	}

	step := m.speed * dt
	if distance <= step {
		// Waypoint reached: snap to it and pop the order.
		_ = e.AddComponent(pos.Moved(cmd.Target, facing))
		if _, rest, popped := queue.Dequeue(); popped {
			_ = e.AddComponent(rest)
		}
		return
	}

	next := current.Add(delta.Scale(step / distance))
	_ = e.AddComponent(pos.Moved(next, facing))
}

// heading converts a movement vector into a facing angle in degrees.
func heading(delta types.WorldPos) float64 {
	return math.Atan2(delta.Y, delta.X) * 180 / math.Pi
}
