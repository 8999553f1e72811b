package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/openrts/openrts/internal/core/events/bus"
	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/protocol"
	"github.com/openrts/openrts/internal/core/render"
	"github.com/openrts/openrts/internal/core/types"
	"github.com/openrts/openrts/pkg/concurrent"
	"github.com/openrts/openrts/pkg/sequence"
)

// Server streams drawable game state to viewers. It binds a render proxy
// to every live entity, drains the proxies on a fixed frame tick and
// broadcasts the changes over one or more transports.
type Server struct {
	// Attached game state
	state  *gamestate.GameState
	events bus.EventBus
	codec  protocol.Codec

	// Network endpoints
	transports []protocol.Transport

	// Viewer management
	viewers     sync.Map // map[string]*ViewerSession
	viewerCount int64    // atomic

	// Render proxies, one per live entity. The mutex also guards the
	// ids despawned since the last broadcast frame.
	mu      sync.Mutex
	proxies map[types.EntityID]*render.WorldEntity
	gone    []types.EntityID

	// Frame counter
	frame uint64 // atomic

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	// Configuration and logging
	config Config
	logger log.Log

	// Event subscriptions and background workers
	subs        []bus.Subscription
	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

// Config holds server configuration
type Config struct {
	// Identity
	Name string

	// Network settings
	WebSocketAddr string
	QUICAddr      string
	MaxViewers    int

	// Frame pacing
	FrameRate        int
	KeyframeInterval uint64

	// Message settings
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	// Logging
	LogLevel log.Level
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		Name:             "openrts",
		WebSocketAddr:    "127.0.0.1:8080",
		QUICAddr:         "",
		MaxViewers:       1024,
		FrameRate:        30,
		KeyframeInterval: 300,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      time.Minute,
		LogLevel:         log.LevelInfo,
	}
}

// Validate reports whether the configuration can run a server.
func (c Config) Validate() error {
	if c.FrameRate <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxViewers <= 0 {
		return ErrInvalidConfig
	}
	if c.WebSocketAddr == "" && c.QUICAddr == "" {
		return ErrNoTransports
	}
	return nil
}

// ViewerSession represents a connected viewer session
type ViewerSession struct {
	ID          string
	Connection  protocol.Connection
	ConnectedAt time.Time
	LastSeen    int64 // atomic unix timestamp
	Active      int32 // atomic bool
	Greeted     int32 // atomic bool, set once hello and keyframe are out
}

// NewServer creates a feed server attached to the given game state. The
// event bus keeps the proxy set in step with spawns and despawns; it
// should be the same bus the state publishes on.
func NewServer(state *gamestate.GameState, events bus.EventBus, config Config) *Server {
	logger := log.New(config.LogLevel)

	server := &Server{
		state:    state,
		events:   events,
		codec:    protocol.NewJSONCodec(),
		proxies:  make(map[types.EntityID]*render.WorldEntity),
		config:   config,
		logger:   logger.With(log.String("component", "server")),
		stopChan: make(chan struct{}),
	}

	server.logger.Info("Server created",
		log.String("name", config.Name),
		log.Int("frame_rate", config.FrameRate),
		log.Int("max_viewers", config.MaxViewers))

	return server
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	// A previous Stop closed the channel; workers need a fresh one.
	s.stopChan = make(chan struct{})

	if s.state == nil {
		atomic.StoreInt32(&s.running, 0)
		return ErrNilGameState
	}

	if err := s.config.Validate(); err != nil {
		atomic.StoreInt32(&s.running, 0)
		return err
	}

	s.logger.Info("Starting server")

	if err := s.listenTransports(ctx); err != nil {
		atomic.StoreInt32(&s.running, 0)
		return err
	}

	s.bindExisting()

	if err := s.subscribeEvents(); err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.closeTransports()
		s.unbindAll()
		s.logger.Error("Failed to subscribe to entity events", log.Error(err))
		return err
	}

	s.startWorkers()

	for _, t := range s.transports {
		go s.acceptConnections(t)
	}

	s.logger.Info("Server started successfully",
		log.Int("transports", len(s.transports)),
		log.Int("entities", s.state.Len()))

	return nil
}

// listenTransports opens every transport named in the configuration.
func (s *Server) listenTransports(ctx context.Context) error {
	cfg := protocol.DefaultConfig()
	cfg.HandshakeTimeout = s.config.WriteTimeout

	if s.config.WebSocketAddr != "" {
		t := protocol.NewWebSocketTransport(cfg)
		if err := t.Listen(ctx, s.config.WebSocketAddr); err != nil {
			s.logger.Error("Failed to listen on websocket", log.Error(err))
			return err
		}
		s.transports = append(s.transports, t)
		s.logger.Info("Server listening",
			log.String("transport", string(t.Kind())),
			log.String("addr", t.Addr().String()))
	}

	if s.config.QUICAddr != "" {
		t := protocol.NewQUICTransport(cfg)
		if err := t.Listen(ctx, s.config.QUICAddr); err != nil {
			s.logger.Error("Failed to listen on quic", log.Error(err))
			s.closeTransports()
			return err
		}
		s.transports = append(s.transports, t)
		s.logger.Info("Server listening",
			log.String("transport", string(t.Kind())),
			log.String("addr", t.Addr().String()))
	}

	if len(s.transports) == 0 {
		return ErrNoTransports
	}

	return nil
}

func (s *Server) closeTransports() {
	for _, t := range s.transports {
		_ = t.Close()
	}
	s.transports = nil
}

// Stop stops the server
func (s *Server) Stop(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	// Signal stop
	close(s.stopChan)

	// Stop following entity lifecycle
	for _, sub := range s.subs {
		_ = sub.Cancel()
	}
	s.subs = nil

	// Close listeners
	s.closeTransports()

	// Disconnect all viewers
	var sessions []*ViewerSession
	s.viewers.Range(func(key, value interface{}) bool {
		if session, ok := value.(*ViewerSession); ok {
			atomic.StoreInt32(&session.Active, 0)
			sessions = append(sessions, session)
		}
		return true
	})
	concurrent.ParallelMust(sequence.From(sessions), func(session *ViewerSession) {
		_ = session.Connection.Close()
	})

	// Wait for workers to stop
	s.stopWorkers()

	// Detach render proxies from the state
	s.unbindAll()

	s.logger.Info("Server stopped")

	return nil
}

// Close closes the server and releases all resources
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // Already closed
	}

	s.logger.Info("Closing server")

	if atomic.LoadInt32(&s.running) == 1 {
		_ = s.Stop(context.Background())
	}

	s.logger.Info("Server closed")

	return nil
}

// acceptConnections accepts incoming viewer connections on one transport
func (s *Server) acceptConnections(t protocol.Transport) {
	transportLogger := s.logger.With(log.String("transport", string(t.Kind())))
	transportLogger.Debug("Connection acceptor started")
	defer transportLogger.Debug("Connection acceptor stopped")

	for atomic.LoadInt32(&s.running) == 1 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

		conn, err := t.Accept(ctx)
		cancel()
		if err != nil {
			if atomic.LoadInt32(&s.running) == 0 {
				return
			}
			if errors.Is(err, protocol.ErrTransportClosed) {
				return
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				transportLogger.Error("Failed to accept connection", log.Error(err))
				time.Sleep(100 * time.Millisecond)
			}
			continue
		}

		if int(atomic.LoadInt64(&s.viewerCount)) >= s.config.MaxViewers {
			transportLogger.Warn("Maximum viewers reached, rejecting connection",
				log.String("remote_addr", conn.RemoteAddr().String()))
			_ = conn.Close()
			continue
		}

		session := &ViewerSession{
			ID:          uuid.NewString(),
			Connection:  conn,
			ConnectedAt: time.Now(),
			LastSeen:    time.Now().Unix(),
			Active:      1,
		}

		s.viewers.Store(session.ID, session)
		atomic.AddInt64(&s.viewerCount, 1)

		transportLogger.Info("Viewer connected",
			log.String("viewer_id", session.ID),
			log.String("remote_addr", conn.RemoteAddr().String()),
			log.Int64("total_viewers", atomic.LoadInt64(&s.viewerCount)))

		go s.handleViewer(session)
	}
}

// handleViewer greets a viewer with the full state and then watches the
// connection for an orderly goodbye. All frame traffic flows the other
// way, from the broadcast worker.
func (s *Server) handleViewer(session *ViewerSession) {
	defer func() {
		atomic.StoreInt32(&session.Active, 0)
		s.viewers.Delete(session.ID)
		atomic.AddInt64(&s.viewerCount, -1)
		_ = session.Connection.Close()

		s.logger.Info("Viewer disconnected",
			log.String("viewer_id", session.ID),
			log.Int64("total_viewers", atomic.LoadInt64(&s.viewerCount)))
	}()

	viewerLogger := s.logger.With(log.String("viewer_id", session.ID))
	viewerLogger.Debug("Viewer handler started")

	if err := s.sendHello(session); err != nil {
		viewerLogger.Error("Failed to send hello", log.Error(err))
		return
	}

	if err := s.sendKeyframe(session); err != nil {
		viewerLogger.Error("Failed to send keyframe", log.Error(err))
		return
	}

	// Frame broadcasts hold off until the greeting is out, so a viewer
	// never sees an update before its keyframe.
	atomic.StoreInt32(&session.Greeted, 1)

	for atomic.LoadInt32(&session.Active) == 1 {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ReadTimeout)
		data, err := session.Connection.Read(ctx)
		cancel()

		if err != nil {
			// Viewers are mostly silent; a read timeout is not a
			// dead connection.
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if atomic.LoadInt32(&session.Active) == 1 && !errors.Is(err, protocol.ErrConnectionClosed) {
				viewerLogger.Debug("Viewer read ended", log.Error(err))
			}
			break
		}

		atomic.StoreInt64(&session.LastSeen, time.Now().Unix())

		msg, err := s.codec.Decode(data)
		if err != nil {
			viewerLogger.Warn("Discarding malformed viewer message", log.Error(err))
			continue
		}

		if msg.Type == protocol.MsgBye {
			viewerLogger.Debug("Viewer said goodbye")
			break
		}
	}

	viewerLogger.Debug("Viewer handler stopped")
}

// Addr returns the bound address of the transport of the given kind, or
// nil when that transport is not listening.
func (s *Server) Addr(kind protocol.Kind) net.Addr {
	for _, t := range s.transports {
		if t.Kind() == kind {
			return t.Addr()
		}
	}
	return nil
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	s.mu.Lock()
	proxyCount := len(s.proxies)
	s.mu.Unlock()

	return Stats{
		ViewerCount: atomic.LoadInt64(&s.viewerCount),
		EntityCount: proxyCount,
		Frame:       atomic.LoadUint64(&s.frame),
		Running:     atomic.LoadInt32(&s.running) == 1,
	}
}

// Stats contains server statistics
type Stats struct {
	ViewerCount int64
	EntityCount int
	Frame       uint64
	Running     bool
}

// startWorkers starts background worker goroutines
func (s *Server) startWorkers() {
	s.workerGroup.Add(1)

	// Frame broadcaster
	go func() {
		defer s.workerGroup.Done()
		s.broadcastLoop()
	}()
}

// stopWorkers stops background worker goroutines
func (s *Server) stopWorkers() {
	s.workerGroup.Wait()
}
