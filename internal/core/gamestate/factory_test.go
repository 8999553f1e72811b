package gamestate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openrts/openrts/internal/core/component"
	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/types"
)

const templatesYAML = `
templates:
  - name: militia
    animation_path: units/militia.sprite
    components:
      - kind: position
        path:
          - {x: 0, y: 0}
        facing: [0]
      - kind: ownership
        owner: 1
      - kind: selectable
  - name: scout
    animation_path: units/scout.sprite
    components:
      - kind: position
        path:
          - {x: 4, y: 2}
        facing: [90]
      - kind: command_queue
        commands:
          - verb: move
            target: {x: 10, y: 10}
`

func TestFactory(t *testing.T) {
	t.Run("NextID is monotonically increasing", func(t *testing.T) {
		f := gamestate.NewFactory(log.Nop())
		a := f.NextID()
		b := f.NextID()
		require.Equal(t, types.EntityID(1), a)
		require.Equal(t, types.EntityID(2), b)
	})

	t.Run("Create builds a bare entity with a fresh id", func(t *testing.T) {
		f := gamestate.NewFactory(log.Nop())
		e := f.Create("units/tower.sprite")
		require.Equal(t, types.EntityID(1), e.ID())
		require.Equal(t, "units/tower.sprite", e.AnimationPath())
		require.Empty(t, e.Kinds())
	})

	t.Run("SpawnFrom clones under a fresh id", func(t *testing.T) {
		f := gamestate.NewFactory(log.Nop())
		src := f.Create("units/knight.sprite")
		require.NoError(t, src.AddComponent(component.PositionAt(types.Pos(1, 1), 0)))

		c, err := f.SpawnFrom(src)
		require.NoError(t, err)
		require.Equal(t, types.EntityID(2), c.ID())
		require.True(t, c.HasComponent(component.KindPosition))

		_, err = f.SpawnFrom(nil)
		require.ErrorIs(t, err, gamestate.ErrNilEntity)
	})

	t.Run("Spawn of an unknown template fails", func(t *testing.T) {
		f := gamestate.NewFactory(log.Nop())
		_, err := f.Spawn("dragon")
		require.ErrorIs(t, err, gamestate.ErrTemplateNotFound)
	})

	t.Run("Register validates component kinds", func(t *testing.T) {
		f := gamestate.NewFactory(log.Nop())
		err := f.Register(gamestate.Template{
			Name:       "broken",
			Components: []gamestate.TemplateComponent{{Kind: "warp_drive"}},
		})
		require.ErrorIs(t, err, gamestate.ErrInvalidTemplate)

		err = f.Register(gamestate.Template{})
		require.ErrorIs(t, err, gamestate.ErrInvalidTemplate)
	})
}

func TestFactoryTemplatesYAML(t *testing.T) {
	f := gamestate.NewFactory(log.Nop())
	require.NoError(t, f.LoadTemplatesYAML(strings.NewReader(templatesYAML)))
	require.ElementsMatch(t, []string{"militia", "scout"}, f.Templates())

	t.Run("Spawned militia carries the templated components", func(t *testing.T) {
		e, err := f.Spawn("militia")
		require.NoError(t, err)
		require.Equal(t, "units/militia.sprite", e.AnimationPath())
		require.Equal(t, []component.Kind{
			component.KindPosition,
			component.KindOwnership,
			component.KindSelectable,
		}, e.Kinds())

		pos, ok := e.Positional()
		require.True(t, ok)
		require.Equal(t, []types.WorldPos{types.Pos(0, 0)}, pos.Positions())

		own, err := e.Component(component.KindOwnership)
		require.NoError(t, err)
		require.Equal(t, types.PlayerID(1), own.(*component.Ownership).Owner())
	})

	t.Run("Spawned scout carries its move order", func(t *testing.T) {
		e, err := f.Spawn("scout")
		require.NoError(t, err)

		c, err := e.Component(component.KindCommandQueue)
		require.NoError(t, err)
		q := c.(*component.CommandQueue)
		cmd, ok := q.Peek()
		require.True(t, ok)
		require.Equal(t, component.VerbMove, cmd.Verb)
		require.Equal(t, types.Pos(10, 10), cmd.Target)
	})

	t.Run("Repeated spawns get distinct ids", func(t *testing.T) {
		a, err := f.Spawn("militia")
		require.NoError(t, err)
		b, err := f.Spawn("militia")
		require.NoError(t, err)
		require.NotEqual(t, a.ID(), b.ID())
	})
}

func TestFactoryTemplatesJSON(t *testing.T) {
	f := gamestate.NewFactory(log.Nop())
	jsonDoc := `{"templates": [{"name": "hut", "animation_path": "buildings/hut.sprite",
		"components": [{"kind": "position", "path": [{"x": 1, "y": 2, "z": 0}], "facing": [180]}]}]}`
	require.NoError(t, f.LoadTemplatesJSON(strings.NewReader(jsonDoc)))

	e, err := f.Spawn("hut")
	require.NoError(t, err)
	pos, ok := e.Positional()
	require.True(t, ok)
	require.Equal(t, []float64{180}, pos.Angles())
}
