package gamestate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openrts/openrts/internal/core/events/bus"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/types"
)

// GameState holds every live entity of a running game, keyed by id. It is
// safe for concurrent use. When constructed with an event bus it publishes
// entity lifecycle events on TopicEntities.
type GameState struct {
	mu       sync.RWMutex
	entities map[types.EntityID]*GameEntity

	events bus.EventBus
	logger log.Log
}

// NewGameState creates an empty state. The bus may be nil when no consumer
// cares about lifecycle events.
func NewGameState(events bus.EventBus, logger log.Log) *GameState {
	if logger == nil {
		logger = log.Provide()
	}
	return &GameState{
		entities: make(map[types.EntityID]*GameEntity),
		events:   events,
		logger:   logger.With(log.String("component", "gamestate")),
	}
}

// Add inserts an entity. Ids are unique within a state; a second entity
// under the same id is rejected with ErrEntityExists.
func (s *GameState) Add(e *GameEntity) error {
	if e == nil {
		return ErrNilEntity
	}

	s.mu.Lock()
	if _, exists := s.entities[e.ID()]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntityExists, e.ID())
	}
	s.entities[e.ID()] = e
	total := len(s.entities)
	s.mu.Unlock()

	s.logger.Debug("entity spawned",
		log.Uint64("entity", uint64(e.ID())),
		log.Int("total", total))
	s.publish(EventEntitySpawned, e)
	return nil
}

// Get returns the entity registered under id.
func (s *GameState) Get(id types.EntityID) (*GameEntity, error) {
	s.mu.RLock()
	e, ok := s.entities[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return e, nil
}

// Remove deletes the entity registered under id.
func (s *GameState) Remove(id types.EntityID) error {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	delete(s.entities, id)
	s.mu.Unlock()

	s.logger.Debug("entity despawned", log.Uint64("entity", uint64(id)))
	s.publish(EventEntityDespawned, e)
	return nil
}

// Len returns the number of live entities.
func (s *GameState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Each calls fn for every entity over a stable snapshot, in ascending id
// order. Returning false from fn stops the walk. Entities added or removed
// while walking are not reflected.
func (s *GameState) Each(fn func(*GameEntity) bool) {
	s.mu.RLock()
	snapshot := make([]*GameEntity, 0, len(s.entities))
	for _, e := range s.entities {
		snapshot = append(snapshot, e)
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID() < snapshot[j].ID() })
	for _, e := range snapshot {
		if !fn(e) {
			return
		}
	}
}

func (s *GameState) publish(eventType string, e *GameEntity) {
	if s.events == nil {
		return
	}
	ev := bus.NewEvent(eventType, "gamestate", EntityEvent{
		ID:            e.ID(),
		AnimationPath: e.AnimationPath(),
	})
	if err := s.events.PublishToTopic(TopicEntities, ev); err != nil {
		s.logger.Warn("lifecycle event delivery failed",
			log.String("event", eventType),
			log.Error(err))
	}
}
