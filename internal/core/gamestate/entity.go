package gamestate

import (
	"sync"

	"github.com/openrts/openrts/internal/core/component"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/types"
)

// RenderEntity is the non-owning handle an entity pushes its drawable state
// into. The renderer side implements it; the game side only ever calls
// Update and never manages the proxy's lifetime. A proxy that reports
// Closed is treated as absent.
type RenderEntity interface {
	// Update replaces the proxy's drawable state wholesale: the entity id,
	// the waypoint path, the facing angle per waypoint and the animation
	// asset locator. Every push carries the full state, so a lost update
	// is healed by the next one.
	Update(id types.EntityID, positions []types.WorldPos, angles []float64, animationPath string)
	// Closed reports whether the proxy has been torn down.
	Closed() bool
}

// GameEntity is a single simulated object: a stable id, an optional
// animation asset locator, the exclusive registry of its components and an
// optional link to a render proxy. All mutation goes through the entity's
// own lock.
type GameEntity struct {
	mu sync.Mutex

	id            types.EntityID
	animationPath string
	registry      *Registry
	render        RenderEntity

	logger log.Log
}

// NewGameEntity creates an entity with an empty component registry and no
// render binding. The animation path may be empty for entities that are
// never drawn. Id uniqueness is the caller's concern.
func NewGameEntity(id types.EntityID, animationPath string) *GameEntity {
	return &GameEntity{
		id:            id,
		animationPath: animationPath,
		registry:      NewRegistry(),
		logger:        log.Provide(),
	}
}

// ID returns the stable entity id.
func (e *GameEntity) ID() types.EntityID {
	return e.id
}

// AnimationPath returns the animation asset locator, or "" when the entity
// has none.
func (e *GameEntity) AnimationPath() string {
	return e.animationPath
}

// Clone returns a deep copy of the entity under a new id. The component
// registry is copied component by component; the render binding is not
// carried over, so the clone starts unbound and pushes nothing until a
// proxy is attached to it.
func (e *GameEntity) Clone(newID types.EntityID) *GameEntity {
	e.mu.Lock()
	defer e.mu.Unlock()

	return &GameEntity{
		id:            newID,
		animationPath: e.animationPath,
		registry:      e.registry.Copy(),
		logger:        e.logger,
	}
}

// AddComponent registers c under its reported kind. An existing component
// of the same kind is replaced, last write wins. Replacing or adding a
// position while a render proxy is bound triggers a fresh push so the
// renderer never lags a mutation.
func (e *GameEntity) AddComponent(c component.Component) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	replaced, err := e.registry.Insert(c)
	if err != nil {
		return err
	}
	if replaced {
		e.logger.Debug("component replaced",
			log.Uint64("entity", uint64(e.id)),
			log.String("kind", c.Kind().String()))
	}
	if c.Kind() == component.KindPosition {
		e.pushLocked()
	}
	return nil
}

// Component returns the component of the given kind. Absence is reported
// through ErrComponentNotFound and is an ordinary condition, not a failure.
func (e *GameEntity) Component(kind component.Kind) (component.Component, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Get(kind)
}

// HasComponent reports whether a component of the given kind is attached.
func (e *GameEntity) HasComponent(kind component.Kind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Contains(kind)
}

// Kinds returns the attached component kinds in ascending order.
func (e *GameEntity) Kinds() []component.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Kinds()
}

// Positional returns the entity's position component through its capability
// view, when one is attached.
func (e *GameEntity) Positional() (component.Positional, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.registry.Get(component.KindPosition)
	if err != nil {
		return nil, false
	}
	pos, ok := c.(component.Positional)
	return pos, ok
}

// SetRenderEntity binds a render proxy and immediately pushes the current
// state into it, so a fresh proxy never sits on default values. Passing nil
// unbinds. The entity does not own the proxy.
func (e *GameEntity) SetRenderEntity(re RenderEntity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.render = re
	e.pushLocked()
}

// BoundToRender reports whether a live render proxy is attached.
func (e *GameEntity) BoundToRender() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.render != nil && !e.render.Closed()
}

// PushToRender forwards the entity's current drawable state to its render
// proxy. Without a proxy, with a torn-down proxy or without a position
// component this is a no-op; the entity stays valid either way.
func (e *GameEntity) PushToRender() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pushLocked()
}

func (e *GameEntity) pushLocked() {
	if e.render == nil {
		return
	}
	if e.render.Closed() {
		e.logger.Debug("render push skipped, proxy closed",
			log.Uint64("entity", uint64(e.id)))
		return
	}
	c, err := e.registry.Get(component.KindPosition)
	if err != nil {
		return
	}
	pos, ok := c.(component.Positional)
	if !ok {
		e.logger.Warn("position component without positional view",
			log.Uint64("entity", uint64(e.id)))
		return
	}
	e.render.Update(e.id, pos.Positions(), pos.Angles(), e.animationPath)
}
