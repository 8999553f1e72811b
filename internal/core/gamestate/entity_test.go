package gamestate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openrts/openrts/internal/core/component"
	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/render"
	"github.com/openrts/openrts/internal/core/types"
)

func TestGameEntityComponents(t *testing.T) {
	t.Run("New entity has an empty registry", func(t *testing.T) {
		e := gamestate.NewGameEntity(1, "units/militia.sprite")
		require.Equal(t, types.EntityID(1), e.ID())
		require.Equal(t, "units/militia.sprite", e.AnimationPath())
		require.Empty(t, e.Kinds())
	})

	t.Run("Lookup of an absent kind reports ErrComponentNotFound", func(t *testing.T) {
		e := gamestate.NewGameEntity(1, "")
		_, err := e.Component(component.KindPosition)
		require.ErrorIs(t, err, gamestate.ErrComponentNotFound)
		require.False(t, e.HasComponent(component.KindPosition))
	})

	t.Run("AddComponent registers under the reported kind", func(t *testing.T) {
		e := gamestate.NewGameEntity(1, "")
		require.NoError(t, e.AddComponent(component.NewOwnership(2)))

		c, err := e.Component(component.KindOwnership)
		require.NoError(t, err)
		require.Equal(t, types.PlayerID(2), c.(*component.Ownership).Owner())
	})

	t.Run("Same-kind re-add keeps exactly the newest component", func(t *testing.T) {
		e := gamestate.NewGameEntity(1, "")
		require.NoError(t, e.AddComponent(component.NewOwnership(1)))
		require.NoError(t, e.AddComponent(component.NewOwnership(9)))

		require.Equal(t, []component.Kind{component.KindOwnership}, e.Kinds())
		c, err := e.Component(component.KindOwnership)
		require.NoError(t, err)
		require.Equal(t, types.PlayerID(9), c.(*component.Ownership).Owner())
	})

	t.Run("Nil component is rejected", func(t *testing.T) {
		e := gamestate.NewGameEntity(1, "")
		require.ErrorIs(t, e.AddComponent(nil), gamestate.ErrNilComponent)
	})

	t.Run("Positional exposes the capability view", func(t *testing.T) {
		e := gamestate.NewGameEntity(1, "")
		_, ok := e.Positional()
		require.False(t, ok)

		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(4, 2), 90)))
		pos, ok := e.Positional()
		require.True(t, ok)
		require.Equal(t, []types.WorldPos{types.Pos(4, 2)}, pos.Positions())
		require.Equal(t, []float64{90}, pos.Angles())
	})
}

func TestGameEntityClone(t *testing.T) {
	t.Run("Clone carries the new id and keeps the original intact", func(t *testing.T) {
		e := gamestate.NewGameEntity(10, "units/knight.sprite")
		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(1, 1), 45)))
		require.NoError(t, e.AddComponent(component.NewOwnership(1)))

		c := e.Clone(11)
		require.Equal(t, types.EntityID(11), c.ID())
		require.Equal(t, types.EntityID(10), e.ID())
		require.Equal(t, "units/knight.sprite", c.AnimationPath())
		require.Equal(t, e.Kinds(), c.Kinds())
	})

	t.Run("Clone registries are structurally independent", func(t *testing.T) {
		e := gamestate.NewGameEntity(10, "")
		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(1, 1), 0)))

		c := e.Clone(11)
		require.NoError(t, c.AddComponent(component.PositionAt(types.Pos(9, 9), 180)))
		require.NoError(t, c.AddComponent(component.NewSelectable()))

		origPos, ok := e.Positional()
		require.True(t, ok)
		require.Equal(t, []types.WorldPos{types.Pos(1, 1)}, origPos.Positions())
		require.False(t, e.HasComponent(component.KindSelectable))
	})

	t.Run("Clone does not carry the render binding", func(t *testing.T) {
		rec := render.NewRecorder()
		e := gamestate.NewGameEntity(10, "")
		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(0, 0), 0)))
		e.SetRenderEntity(rec)
		require.True(t, e.BoundToRender())

		c := e.Clone(11)
		require.False(t, c.BoundToRender())

		before := rec.Count()
		require.NoError(t, c.AddComponent(component.PositionAt(types.Pos(5, 5), 0)))
		c.PushToRender()
		require.Equal(t, before, rec.Count())
	})
}

func TestPushToRender(t *testing.T) {
	t.Run("No proxy bound is a silent no-op", func(t *testing.T) {
		e := gamestate.NewGameEntity(1, "")
		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(1, 2), 0)))
		e.PushToRender()
		require.False(t, e.BoundToRender())
	})

	t.Run("Bound proxy without a position component is never invoked", func(t *testing.T) {
		rec := render.NewRecorder()
		e := gamestate.NewGameEntity(1, "units/ghost.sprite")
		require.NoError(t, e.AddComponent(component.NewOwnership(1)))

		e.SetRenderEntity(rec)
		e.PushToRender()
		require.Zero(t, rec.Count())
	})

	t.Run("Binding with a position pushes exactly once", func(t *testing.T) {
		rec := render.NewRecorder()
		e := gamestate.NewGameEntity(3, "units/archer.sprite")
		require.NoError(t, e.AddComponent(component.NewPosition(
			[]types.WorldPos{types.Pos(2, 3), types.Pos(4, 5)},
			[]float64{0, 90},
		)))

		e.SetRenderEntity(rec)
		require.Equal(t, 1, rec.Count())

		got, ok := rec.Last()
		require.True(t, ok)
		require.Equal(t, types.EntityID(3), got.ID)
		require.Equal(t, []types.WorldPos{types.Pos(2, 3), types.Pos(4, 5)}, got.Positions)
		require.Equal(t, []float64{0, 90}, got.Angles)
		require.Equal(t, "units/archer.sprite", got.AnimationPath)
	})

	t.Run("Replacing the position while bound pushes again", func(t *testing.T) {
		rec := render.NewRecorder()
		e := gamestate.NewGameEntity(3, "")
		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(0, 0), 0)))
		e.SetRenderEntity(rec)
		require.Equal(t, 1, rec.Count())

		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(1, 0), 90)))
		require.Equal(t, 2, rec.Count())

		got, ok := rec.Last()
		require.True(t, ok)
		require.Equal(t, []types.WorldPos{types.Pos(1, 0)}, got.Positions)
	})

	t.Run("Attaching a position after binding reaches the proxy", func(t *testing.T) {
		rec := render.NewRecorder()
		e := gamestate.NewGameEntity(3, "units/militia.sprite")
		e.SetRenderEntity(rec)
		require.Zero(t, rec.Count())

		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(7, 7), 0)))
		require.Equal(t, 1, rec.Count())
	})

	t.Run("Non-drawable component changes do not push", func(t *testing.T) {
		rec := render.NewRecorder()
		e := gamestate.NewGameEntity(3, "")
		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(0, 0), 0)))
		e.SetRenderEntity(rec)

		require.NoError(t, e.AddComponent(component.NewOwnership(4)))
		require.NoError(t, e.AddComponent(component.NewSelectable()))
		require.Equal(t, 1, rec.Count())
	})

	t.Run("Closed proxy is skipped", func(t *testing.T) {
		rec := render.NewRecorder()
		e := gamestate.NewGameEntity(3, "")
		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(0, 0), 0)))
		e.SetRenderEntity(rec)
		require.Equal(t, 1, rec.Count())

		rec.Close()
		require.False(t, e.BoundToRender())
		e.PushToRender()
		require.Equal(t, 1, rec.Count())
	})

	t.Run("Unbinding stops pushes without touching components", func(t *testing.T) {
		rec := render.NewRecorder()
		e := gamestate.NewGameEntity(3, "")
		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(0, 0), 0)))
		e.SetRenderEntity(rec)
		e.SetRenderEntity(nil)

		require.NoError(t, e.AddComponent(component.PositionAt(types.Pos(2, 2), 0)))
		require.Equal(t, 1, rec.Count())
		require.True(t, e.HasComponent(component.KindPosition))
	})
}

// The full unit lifecycle as a renderer sees it: spawn, bind, observe one
// push, clone, observe silence from the clone.
func TestUnitLifecycleEndToEnd(t *testing.T) {
	e := gamestate.NewGameEntity(7, "unit.sprite")
	require.NoError(t, e.AddComponent(component.NewPosition(
		[]types.WorldPos{types.Pos(0, 0)},
		[]float64{0},
	)))

	rec := render.NewRecorder()
	e.SetRenderEntity(rec)

	require.Equal(t, 1, rec.Count())
	got, ok := rec.Last()
	require.True(t, ok)
	require.Equal(t, types.EntityID(7), got.ID)
	require.Equal(t, []types.WorldPos{types.Pos(0, 0)}, got.Positions)
	require.Equal(t, []float64{0}, got.Angles)
	require.Equal(t, "unit.sprite", got.AnimationPath)

	clone := e.Clone(8)
	require.Equal(t, types.EntityID(8), clone.ID())
	clone.PushToRender()
	require.Equal(t, 1, rec.Count(), "the clone must not reach the original's proxy")
}
