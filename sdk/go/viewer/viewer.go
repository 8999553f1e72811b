// Package viewer provides a high-level feed client SDK for OpenRTS.
// A Viewer dials a feed server, mirrors the drawable state it streams
// and hands typed callbacks to the application.
package viewer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/protocol"
	"github.com/openrts/openrts/internal/core/render"
	"github.com/openrts/openrts/internal/core/types"
	"github.com/openrts/openrts/pkg/sequence"
)

// HelloHandler runs when the server introduces the session.
type HelloHandler func(hello protocol.Hello)

// KeyframeHandler runs after a keyframe replaced the local table.
type KeyframeHandler func(keyframe protocol.Keyframe)

// UpdateHandler runs after a delta was applied to the local table.
type UpdateHandler func(update protocol.Update)

// DisconnectHandler runs when the feed connection ends.
type DisconnectHandler func(err error)

// Viewer represents one feed connection and its mirrored state
type Viewer struct {
	// Connection management
	conn      protocol.Connection
	transport protocol.Transport
	codec     protocol.Codec

	// Feed identity, set by hello
	identity protocol.Hello

	// Local drawable state, keyed by entity id
	mu       sync.RWMutex
	entities map[types.EntityID]render.Snapshot
	frame    uint64

	// Event handlers
	helloHandlers      []HelloHandler
	keyframeHandlers   []KeyframeHandler
	updateHandlers     []UpdateHandler
	disconnectHandlers []DisconnectHandler
	handlerMutex       sync.RWMutex

	// Lifecycle
	connected int32 // atomic bool
	closed    int32 // atomic bool

	// Configuration and logging
	config Config
	logger log.Log

	// Background workers
	workerGroup sync.WaitGroup
}

// Config holds configuration for the viewer
type Config struct {
	// Connection settings
	ServerAddr     string
	Transport      protocol.Kind
	ConnectTimeout time.Duration

	// Message settings
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logging
	LogLevel log.Level
}

// DefaultViewerConfig returns default viewer configuration
func DefaultViewerConfig() Config {
	return Config{
		ServerAddr:     "127.0.0.1:8080",
		Transport:      protocol.KindWebSocket,
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    time.Minute,
		WriteTimeout:   5 * time.Second,
		LogLevel:       log.LevelInfo,
	}
}

// NewViewer creates a new feed viewer
func NewViewer(config Config) *Viewer {
	logger := log.New(config.LogLevel)

	viewer := &Viewer{
		codec:    protocol.NewJSONCodec(),
		entities: make(map[types.EntityID]render.Snapshot),
		config:   config,
		logger:   logger.With(log.String("component", "viewer")),
	}

	return viewer
}

// Connect dials the feed server and starts mirroring its stream.
func (v *Viewer) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&v.closed) == 1 {
		return ErrViewerClosed
	}

	if !atomic.CompareAndSwapInt32(&v.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	v.logger.Info("Connecting to feed",
		log.String("addr", v.config.ServerAddr),
		log.String("transport", string(v.config.Transport)))

	transport, err := protocol.New(v.config.Transport)
	if err != nil {
		atomic.StoreInt32(&v.connected, 0)
		return err
	}
	v.transport = transport

	connectCtx, cancel := context.WithTimeout(ctx, v.config.ConnectTimeout)
	defer cancel()

	conn, err := transport.Dial(connectCtx, v.config.ServerAddr)
	if err != nil {
		atomic.StoreInt32(&v.connected, 0)
		v.logger.Error("Failed to connect to feed",
			log.String("addr", v.config.ServerAddr),
			log.Error(err))
		return err
	}

	v.conn = conn

	v.logger.Info("Connected to feed",
		log.String("remote_addr", conn.RemoteAddr().String()))

	v.startWorkers()

	return nil
}

// Disconnect says goodbye and closes the connection.
func (v *Viewer) Disconnect() error {
	if !atomic.CompareAndSwapInt32(&v.connected, 1, 0) {
		return ErrNotConnected
	}

	v.logger.Info("Disconnecting from feed")

	if v.conn != nil {
		v.sendBye("viewer closing")
		_ = v.conn.Close()
	}

	v.stopWorkers()

	v.logger.Info("Disconnected from feed")

	return nil
}

// Close closes the viewer and releases all resources
func (v *Viewer) Close() error {
	if !atomic.CompareAndSwapInt32(&v.closed, 0, 1) {
		return nil // Already closed
	}

	if atomic.LoadInt32(&v.connected) == 1 {
		_ = v.Disconnect()
	}

	if v.transport != nil {
		_ = v.transport.Close()
	}

	return nil
}

// IsConnected returns true while the feed connection is up.
func (v *Viewer) IsConnected() bool {
	return atomic.LoadInt32(&v.connected) == 1
}

// Hello returns the server's introduction. Zero until the server spoke.
func (v *Viewer) Hello() protocol.Hello {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.identity
}

// Frame returns the latest applied frame number.
func (v *Viewer) Frame() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.frame
}

// Entity returns the mirrored snapshot of one entity.
func (v *Viewer) Entity(id types.EntityID) (render.Snapshot, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	snap, ok := v.entities[id]
	return snap, ok
}

// Entities returns the mirrored snapshots ordered by entity id.
func (v *Viewer) Entities() []render.Snapshot {
	v.mu.RLock()
	out := sequence.FromMap(v.entities).Collect()
	v.mu.RUnlock()

	return sequence.From(out).
		Sort(func(a, b render.Snapshot) bool { return a.ID < b.ID }).
		Collect()
}

// OnHello registers a handler for the server introduction.
func (v *Viewer) OnHello(handler HelloHandler) {
	v.handlerMutex.Lock()
	v.helloHandlers = append(v.helloHandlers, handler)
	v.handlerMutex.Unlock()
}

// OnKeyframe registers a handler for applied keyframes.
func (v *Viewer) OnKeyframe(handler KeyframeHandler) {
	v.handlerMutex.Lock()
	v.keyframeHandlers = append(v.keyframeHandlers, handler)
	v.handlerMutex.Unlock()
}

// OnUpdate registers a handler for applied deltas.
func (v *Viewer) OnUpdate(handler UpdateHandler) {
	v.handlerMutex.Lock()
	v.updateHandlers = append(v.updateHandlers, handler)
	v.handlerMutex.Unlock()
}

// OnDisconnect registers a handler for the end of the feed.
func (v *Viewer) OnDisconnect(handler DisconnectHandler) {
	v.handlerMutex.Lock()
	v.disconnectHandlers = append(v.disconnectHandlers, handler)
	v.handlerMutex.Unlock()
}

// startWorkers starts background worker goroutines
func (v *Viewer) startWorkers() {
	v.workerGroup.Add(1)

	// Message receiver
	go func() {
		defer v.workerGroup.Done()
		v.messageReceiver()
	}()
}

// stopWorkers stops background worker goroutines
func (v *Viewer) stopWorkers() {
	v.workerGroup.Wait()
}

// messageReceiver mirrors the feed until the connection ends.
func (v *Viewer) messageReceiver() {
	v.logger.Debug("Message receiver started")

	var cause error
	for atomic.LoadInt32(&v.connected) == 1 && atomic.LoadInt32(&v.closed) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), v.config.ReadTimeout)
		data, err := v.conn.Read(ctx)
		cancel()

		if err != nil {
			// An idle feed is not a dead feed.
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if atomic.LoadInt32(&v.connected) == 1 && !errors.Is(err, protocol.ErrConnectionClosed) {
				v.logger.Warn("Feed read failed", log.Error(err))
				cause = err
			}
			break
		}

		msg, err := v.codec.Decode(data)
		if err != nil {
			v.logger.Warn("Discarding malformed feed message", log.Error(err))
			continue
		}

		v.handleMessage(msg)
	}

	if atomic.CompareAndSwapInt32(&v.connected, 1, 0) {
		v.emitDisconnect(cause)
	}

	v.logger.Debug("Message receiver stopped")
}

// handleMessage applies one feed message to the local table.
func (v *Viewer) handleMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgHello:
		var hello protocol.Hello
		if err := msg.DecodePayload(&hello); err != nil {
			v.logger.Warn("Bad hello payload", log.Error(err))
			return
		}
		v.mu.Lock()
		v.identity = hello
		v.mu.Unlock()
		v.logger.Info("Feed session opened",
			log.String("server", hello.Server),
			log.String("session", hello.Session),
			log.Int("frame_rate", hello.FrameRate))
		v.emitHello(hello)

	case protocol.MsgKeyframe:
		var keyframe protocol.Keyframe
		if err := msg.DecodePayload(&keyframe); err != nil {
			v.logger.Warn("Bad keyframe payload", log.Error(err))
			return
		}
		v.applyKeyframe(keyframe)
		v.emitKeyframe(keyframe)

	case protocol.MsgUpdate:
		var update protocol.Update
		if err := msg.DecodePayload(&update); err != nil {
			v.logger.Warn("Bad update payload", log.Error(err))
			return
		}
		v.applyUpdate(update)
		v.emitUpdate(update)

	case protocol.MsgBye:
		v.logger.Info("Server closed the feed")
		atomic.StoreInt32(&v.connected, 0)
		v.emitDisconnect(nil)

	default:
		v.logger.Warn("Unknown feed message type", log.String("type", msg.Type))
	}
}

// applyKeyframe replaces the whole local table.
func (v *Viewer) applyKeyframe(keyframe protocol.Keyframe) {
	v.mu.Lock()
	v.entities = make(map[types.EntityID]render.Snapshot, len(keyframe.Entities))
	for _, snap := range keyframe.Entities {
		v.entities[snap.ID] = snap
	}
	v.frame = keyframe.Frame
	v.mu.Unlock()
}

// applyUpdate upserts changed snapshots and drops gone entities. Each
// snapshot carries full per-entity state, so order within a frame does
// not matter.
func (v *Viewer) applyUpdate(update protocol.Update) {
	v.mu.Lock()
	for _, snap := range update.Changed {
		v.entities[snap.ID] = snap
	}
	for _, id := range update.Gone {
		delete(v.entities, id)
	}
	if update.Frame > v.frame {
		v.frame = update.Frame
	}
	v.mu.Unlock()
}

func (v *Viewer) sendBye(reason string) {
	msg, err := protocol.NewMessage(protocol.MsgBye, protocol.Bye{Reason: reason})
	if err != nil {
		return
	}
	data, err := v.codec.Encode(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), v.config.WriteTimeout)
	defer cancel()
	_ = v.conn.Write(ctx, data)
}

func (v *Viewer) emitHello(hello protocol.Hello) {
	v.handlerMutex.RLock()
	handlers := v.helloHandlers
	v.handlerMutex.RUnlock()
	for _, handler := range handlers {
		handler(hello)
	}
}

func (v *Viewer) emitKeyframe(keyframe protocol.Keyframe) {
	v.handlerMutex.RLock()
	handlers := v.keyframeHandlers
	v.handlerMutex.RUnlock()
	for _, handler := range handlers {
		handler(keyframe)
	}
}

func (v *Viewer) emitUpdate(update protocol.Update) {
	v.handlerMutex.RLock()
	handlers := v.updateHandlers
	v.handlerMutex.RUnlock()
	for _, handler := range handlers {
		handler(update)
	}
}

func (v *Viewer) emitDisconnect(err error) {
	v.handlerMutex.RLock()
	handlers := v.disconnectHandlers
	v.handlerMutex.RUnlock()
	for _, handler := range handlers {
		handler(err)
	}
}
