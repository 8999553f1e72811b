package gamestate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openrts/openrts/internal/core/component"
	"github.com/openrts/openrts/internal/core/events/bus"
	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/types"
)

func TestGameState(t *testing.T) {
	t.Run("Add and Get round-trip", func(t *testing.T) {
		s := gamestate.NewGameState(nil, log.Nop())
		e := gamestate.NewGameEntity(1, "")
		require.NoError(t, s.Add(e))
		require.Equal(t, 1, s.Len())

		got, err := s.Get(1)
		require.NoError(t, err)
		require.Same(t, e, got)
	})

	t.Run("Duplicate id is rejected", func(t *testing.T) {
		s := gamestate.NewGameState(nil, log.Nop())
		require.NoError(t, s.Add(gamestate.NewGameEntity(1, "")))
		err := s.Add(gamestate.NewGameEntity(1, "other.sprite"))
		require.ErrorIs(t, err, gamestate.ErrEntityExists)
		require.Equal(t, 1, s.Len())
	})

	t.Run("Nil entity is rejected", func(t *testing.T) {
		s := gamestate.NewGameState(nil, log.Nop())
		require.ErrorIs(t, s.Add(nil), gamestate.ErrNilEntity)
	})

	t.Run("Missing ids report ErrEntityNotFound", func(t *testing.T) {
		s := gamestate.NewGameState(nil, log.Nop())
		_, err := s.Get(404)
		require.ErrorIs(t, err, gamestate.ErrEntityNotFound)
		require.ErrorIs(t, s.Remove(404), gamestate.ErrEntityNotFound)
	})

	t.Run("Remove deletes exactly the given entity", func(t *testing.T) {
		s := gamestate.NewGameState(nil, log.Nop())
		require.NoError(t, s.Add(gamestate.NewGameEntity(1, "")))
		require.NoError(t, s.Add(gamestate.NewGameEntity(2, "")))

		require.NoError(t, s.Remove(1))
		require.Equal(t, 1, s.Len())
		_, err := s.Get(2)
		require.NoError(t, err)
	})

	t.Run("Each walks entities in ascending id order", func(t *testing.T) {
		s := gamestate.NewGameState(nil, log.Nop())
		for _, id := range []types.EntityID{5, 1, 3} {
			require.NoError(t, s.Add(gamestate.NewGameEntity(id, "")))
		}

		var seen []types.EntityID
		s.Each(func(e *gamestate.GameEntity) bool {
			seen = append(seen, e.ID())
			return true
		})
		require.Equal(t, []types.EntityID{1, 3, 5}, seen)
	})

	t.Run("Each stops when fn returns false", func(t *testing.T) {
		s := gamestate.NewGameState(nil, log.Nop())
		for id := types.EntityID(1); id <= 5; id++ {
			require.NoError(t, s.Add(gamestate.NewGameEntity(id, "")))
		}
		count := 0
		s.Each(func(*gamestate.GameEntity) bool {
			count++
			return count < 2
		})
		require.Equal(t, 2, count)
	})
}

func TestGameStateLifecycleEvents(t *testing.T) {
	b := bus.New()
	s := gamestate.NewGameState(b, log.Nop())

	var spawned, despawned []gamestate.EntityEvent
	_, err := b.SubscribeTopic(gamestate.TopicEntities, gamestate.EventEntitySpawned, func(e bus.Event) error {
		spawned = append(spawned, e.Data().(gamestate.EntityEvent))
		return nil
	})
	require.NoError(t, err)
	_, err = b.SubscribeTopic(gamestate.TopicEntities, gamestate.EventEntityDespawned, func(e bus.Event) error {
		despawned = append(despawned, e.Data().(gamestate.EntityEvent))
		return nil
	})
	require.NoError(t, err)

	e := gamestate.NewGameEntity(42, "units/militia.sprite")
	require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(0, 0), 0)))
	require.NoError(t, s.Add(e))
	require.NoError(t, s.Remove(42))

	require.Len(t, spawned, 1)
	require.Equal(t, types.EntityID(42), spawned[0].ID)
	require.Equal(t, "units/militia.sprite", spawned[0].AnimationPath)

	require.Len(t, despawned, 1)
	require.Equal(t, types.EntityID(42), despawned[0].ID)
}
