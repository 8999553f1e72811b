package gamestate

import "github.com/openrts/openrts/internal/core/types"

// Entity lifecycle events, published on TopicEntities when the state is
// constructed with an event bus.
const (
	TopicEntities = "entities"

	EventEntitySpawned   = "entity.spawned"
	EventEntityDespawned = "entity.despawned"
)

// EntityEvent is the payload of entity lifecycle events.
type EntityEvent struct {
	ID            types.EntityID
	AnimationPath string
}
