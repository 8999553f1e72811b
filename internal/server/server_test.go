package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openrts/openrts/internal/core/component"
	"github.com/openrts/openrts/internal/core/events/bus"
	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/protocol"
	"github.com/openrts/openrts/internal/core/types"
)

func testConfig() Config {
	cfg := DefaultServerConfig()
	cfg.WebSocketAddr = "127.0.0.1:0"
	cfg.FrameRate = 50
	cfg.KeyframeInterval = 0
	cfg.LogLevel = log.LevelError
	return cfg
}

func newTestState(t *testing.T, events bus.EventBus) *gamestate.GameState {
	t.Helper()
	state := gamestate.NewGameState(events, log.Nop())
	militia := gamestate.NewGameEntity(7, "unit.sprite")
	require.NoError(t, militia.AddComponent(component.PositionAt(types.Pos(0, 0), 0)))
	require.NoError(t, state.Add(militia))
	return state
}

func readMessage(t *testing.T, conn protocol.Connection, codec protocol.Codec) *protocol.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := conn.Read(ctx)
	require.NoError(t, err)
	msg, err := codec.Decode(data)
	require.NoError(t, err)
	return msg
}

// awaitUpdate reads frames until one matches or the deadline passes.
// Frames that race the assertion, like the delta from priming a proxy,
// are skipped rather than failed on.
func awaitUpdate(t *testing.T, conn protocol.Connection, codec protocol.Codec, match func(protocol.Update) bool) protocol.Update {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMessage(t, conn, codec)
		if msg.Type != protocol.MsgUpdate {
			continue
		}
		var upd protocol.Update
		require.NoError(t, msg.DecodePayload(&upd))
		if match(upd) {
			return upd
		}
	}
	t.Fatal("no matching update before deadline")
	return protocol.Update{}
}

func TestServerLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Start and stop", func(t *testing.T) {
		events := bus.New()
		srv := NewServer(newTestState(t, events), events, testConfig())
		require.NoError(t, srv.Start(ctx))
		require.True(t, srv.GetStats().Running)
		require.Equal(t, 1, srv.GetStats().EntityCount)
		require.NotNil(t, srv.Addr(protocol.KindWebSocket))
		require.NoError(t, srv.Stop(ctx))
		require.False(t, srv.GetStats().Running)
	})

	t.Run("Double start is rejected", func(t *testing.T) {
		events := bus.New()
		srv := NewServer(newTestState(t, events), events, testConfig())
		require.NoError(t, srv.Start(ctx))
		require.ErrorIs(t, srv.Start(ctx), ErrServerAlreadyRunning)
		require.NoError(t, srv.Stop(ctx))
	})

	t.Run("Stop before start is rejected", func(t *testing.T) {
		events := bus.New()
		srv := NewServer(newTestState(t, events), events, testConfig())
		require.ErrorIs(t, srv.Stop(ctx), ErrServerNotRunning)
	})

	t.Run("Nil state is rejected", func(t *testing.T) {
		srv := NewServer(nil, nil, testConfig())
		require.ErrorIs(t, srv.Start(ctx), ErrNilGameState)
	})

	t.Run("No transports is rejected", func(t *testing.T) {
		cfg := testConfig()
		cfg.WebSocketAddr = ""
		events := bus.New()
		srv := NewServer(newTestState(t, events), events, cfg)
		require.ErrorIs(t, srv.Start(ctx), ErrNoTransports)
	})

	t.Run("Closed server cannot restart", func(t *testing.T) {
		events := bus.New()
		srv := NewServer(newTestState(t, events), events, testConfig())
		require.NoError(t, srv.Start(ctx))
		require.NoError(t, srv.Close())
		require.ErrorIs(t, srv.Start(ctx), ErrServerClosed)
	})
}

func TestViewerFeedEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events := bus.New()
	state := newTestState(t, events)
	srv := NewServer(state, events, testConfig())
	require.NoError(t, srv.Start(ctx))
	defer func() { _ = srv.Close() }()

	client := protocol.NewWebSocketTransport(protocol.DefaultConfig())
	conn, err := client.Dial(ctx, srv.Addr(protocol.KindWebSocket).String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	codec := protocol.NewJSONCodec()

	// The session opens with hello and a full keyframe.
	msg := readMessage(t, conn, codec)
	require.Equal(t, protocol.MsgHello, msg.Type)
	var hello protocol.Hello
	require.NoError(t, msg.DecodePayload(&hello))
	require.Equal(t, "openrts", hello.Server)
	require.NotEmpty(t, hello.Session)
	require.Equal(t, 50, hello.FrameRate)
	require.Equal(t, state.Digest(), hello.Digest)

	msg = readMessage(t, conn, codec)
	require.Equal(t, protocol.MsgKeyframe, msg.Type)
	var keyframe protocol.Keyframe
	require.NoError(t, msg.DecodePayload(&keyframe))
	require.Len(t, keyframe.Entities, 1)
	require.Equal(t, types.EntityID(7), keyframe.Entities[0].ID)
	require.Equal(t, "unit.sprite", keyframe.Entities[0].AnimationPath)
	require.Equal(t, []types.WorldPos{types.Pos(0, 0)}, keyframe.Entities[0].Positions)
	require.Equal(t, []float64{0}, keyframe.Entities[0].Angles)

	// Moving the unit shows up as a delta on a later frame.
	militia, err := state.Get(7)
	require.NoError(t, err)
	require.NoError(t, militia.AddComponent(component.PositionAt(types.Pos(3, 4), 90)))

	upd := awaitUpdate(t, conn, codec, func(u protocol.Update) bool {
		for _, snap := range u.Changed {
			if snap.ID == 7 && len(snap.Positions) == 1 && snap.Positions[0] == types.Pos(3, 4) {
				return true
			}
		}
		return false
	})
	require.Positive(t, upd.Frame)

	// An entity spawned after attach starts streaming on its own.
	scout := gamestate.NewGameEntity(9, "scout.sprite")
	require.NoError(t, scout.AddComponent(component.PositionAt(types.Pos(1, 1), 45)))
	require.NoError(t, state.Add(scout))

	awaitUpdate(t, conn, codec, func(u protocol.Update) bool {
		for _, snap := range u.Changed {
			if snap.ID == 9 && snap.AnimationPath == "scout.sprite" {
				return true
			}
		}
		return false
	})

	// A despawned entity is reported gone.
	require.NoError(t, state.Remove(9))

	awaitUpdate(t, conn, codec, func(u protocol.Update) bool {
		for _, id := range u.Gone {
			if id == 9 {
				return true
			}
		}
		return false
	})
}

func TestViewerKeyframeResync(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.KeyframeInterval = 10 // at 50 fps a keyframe lands within a second

	events := bus.New()
	state := newTestState(t, events)
	srv := NewServer(state, events, cfg)
	require.NoError(t, srv.Start(ctx))
	defer func() { _ = srv.Close() }()

	client := protocol.NewWebSocketTransport(protocol.DefaultConfig())
	conn, err := client.Dial(ctx, srv.Addr(protocol.KindWebSocket).String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	codec := protocol.NewJSONCodec()

	// Skip the greeting, then wait for a scheduled keyframe.
	readMessage(t, conn, codec)
	readMessage(t, conn, codec)

	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no scheduled keyframe before deadline")
		msg := readMessage(t, conn, codec)
		if msg.Type != protocol.MsgKeyframe {
			continue
		}
		var keyframe protocol.Keyframe
		require.NoError(t, msg.DecodePayload(&keyframe))
		require.Equal(t, state.Digest(), keyframe.Digest)
		require.Len(t, keyframe.Entities, 1)
		require.Zero(t, keyframe.Frame%cfg.KeyframeInterval)
		break
	}
}
