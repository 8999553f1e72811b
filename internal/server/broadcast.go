package server

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/openrts/openrts/internal/core/events/bus"
	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/protocol"
	"github.com/openrts/openrts/internal/core/render"
	"github.com/openrts/openrts/internal/core/types"
	"github.com/openrts/openrts/pkg/concurrent"
	"github.com/openrts/openrts/pkg/sequence"
)

// bindExisting attaches a render proxy to every entity already in the
// state when the server starts.
func (s *Server) bindExisting() {
	s.state.Each(func(e *gamestate.GameEntity) bool {
		s.bindEntity(e)
		return true
	})
}

// bindEntity gives an entity a render proxy. Binding triggers the
// entity's initial push, so the proxy is primed before the next frame.
func (s *Server) bindEntity(e *gamestate.GameEntity) {
	id := e.ID()

	s.mu.Lock()
	if _, ok := s.proxies[id]; ok {
		s.mu.Unlock()
		return
	}
	proxy := render.NewWorldEntity()
	s.proxies[id] = proxy
	s.mu.Unlock()

	e.SetRenderEntity(proxy)

	s.logger.Debug("Render proxy bound", log.String("entity", id.String()))
}

// unbindEntity closes a despawned entity's proxy and queues its id for
// the next update frame.
func (s *Server) unbindEntity(id types.EntityID) {
	s.mu.Lock()
	proxy, ok := s.proxies[id]
	if ok {
		delete(s.proxies, id)
		s.gone = append(s.gone, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	proxy.Close()

	s.logger.Debug("Render proxy closed", log.String("entity", id.String()))
}

// unbindAll closes every proxy and detaches them from the state.
func (s *Server) unbindAll() {
	s.mu.Lock()
	proxies := s.proxies
	s.proxies = make(map[types.EntityID]*render.WorldEntity)
	s.gone = nil
	s.mu.Unlock()

	for _, proxy := range proxies {
		proxy.Close()
	}

	s.state.Each(func(e *gamestate.GameEntity) bool {
		e.SetRenderEntity(nil)
		return true
	})
}

// subscribeEvents keeps the proxy set in step with the entity lifecycle.
func (s *Server) subscribeEvents() error {
	if s.events == nil {
		// Without a bus the server still serves the entities present
		// at start, it just cannot follow later spawns.
		s.logger.Warn("No event bus attached, entities spawned after start will not be streamed")
		return nil
	}

	spawned, err := s.events.SubscribeTopic(gamestate.TopicEntities, gamestate.EventEntitySpawned, func(event bus.Event) error {
		ev, ok := event.Data().(gamestate.EntityEvent)
		if !ok {
			return nil
		}
		entity, err := s.state.Get(ev.ID)
		if err != nil {
			// The spawn raced a despawn; nothing left to bind.
			return nil
		}
		s.bindEntity(entity)
		return nil
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, spawned)

	despawned, err := s.events.SubscribeTopic(gamestate.TopicEntities, gamestate.EventEntityDespawned, func(event bus.Event) error {
		ev, ok := event.Data().(gamestate.EntityEvent)
		if !ok {
			return nil
		}
		s.unbindEntity(ev.ID)
		return nil
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, despawned)

	return nil
}

// broadcastLoop drains the render proxies once per frame.
func (s *Server) broadcastLoop() {
	s.logger.Debug("Frame broadcaster started")

	ticker := time.NewTicker(time.Second / time.Duration(s.config.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.broadcastFrame()
		case <-s.stopChan:
			s.logger.Debug("Frame broadcaster stopped")
			return
		}
	}
}

// broadcastFrame advances the frame counter and sends whatever changed.
// Every KeyframeInterval frames the delta is replaced by a full keyframe
// so viewers can verify their table against the digest.
func (s *Server) broadcastFrame() {
	frame := atomic.AddUint64(&s.frame, 1)

	if s.config.KeyframeInterval > 0 && frame%s.config.KeyframeInterval == 0 {
		s.broadcastKeyframe(frame)
		return
	}

	changed, gone := s.collectChanges()
	if len(changed) == 0 && len(gone) == 0 {
		return
	}

	msg, err := protocol.NewMessage(protocol.MsgUpdate, protocol.Update{
		Frame:   frame,
		Changed: changed,
		Gone:    gone,
	})
	if err != nil {
		s.logger.Error("Failed to build update", log.Error(err))
		return
	}

	s.broadcast(msg)
}

// collectChanges drains dirty proxies and the despawn backlog. Snapshots
// come out ordered by entity id so frames are deterministic.
func (s *Server) collectChanges() ([]render.Snapshot, []types.EntityID) {
	s.mu.Lock()
	var changed []render.Snapshot
	for _, proxy := range s.proxies {
		if snap, ok := proxy.Fetch(); ok {
			changed = append(changed, snap)
		}
	}
	gone := s.gone
	s.gone = nil
	s.mu.Unlock()

	sort.Slice(changed, func(i, j int) bool { return changed[i].ID < changed[j].ID })
	sort.Slice(gone, func(i, j int) bool { return gone[i] < gone[j] })

	return changed, gone
}

// snapshotAll copies the current drawable state of every proxy. When
// clean is set the dirty flags and the despawn backlog reset as well,
// because the keyframe supersedes any pending delta.
func (s *Server) snapshotAll(clean bool) []render.Snapshot {
	s.mu.Lock()
	entities := make([]render.Snapshot, 0, len(s.proxies))
	for _, proxy := range s.proxies {
		snap := proxy.Snapshot()
		if snap.ID == 0 {
			// Never pushed to: the entity has no drawable state yet.
			continue
		}
		if clean {
			proxy.MarkClean()
		}
		entities = append(entities, snap)
	}
	if clean {
		s.gone = nil
	}
	s.mu.Unlock()

	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	return entities
}

func (s *Server) broadcastKeyframe(frame uint64) {
	msg, err := protocol.NewMessage(protocol.MsgKeyframe, protocol.Keyframe{
		Frame:    frame,
		Digest:   s.state.Digest(),
		Entities: s.snapshotAll(true),
	})
	if err != nil {
		s.logger.Error("Failed to build keyframe", log.Error(err))
		return
	}

	s.broadcast(msg)
}

// broadcast sends one message to every greeted viewer, writing to the
// connections in parallel. The call returns only once every write is
// done, so each viewer still sees frames in order; a viewer that cannot
// keep up within the write timeout is dropped.
func (s *Server) broadcast(msg *protocol.Message) {
	data, err := s.codec.Encode(msg)
	if err != nil {
		s.logger.Error("Failed to encode broadcast", log.Error(err))
		return
	}

	var targets []*ViewerSession
	s.viewers.Range(func(key, value interface{}) bool {
		session, ok := value.(*ViewerSession)
		if ok && atomic.LoadInt32(&session.Active) == 1 && atomic.LoadInt32(&session.Greeted) == 1 {
			targets = append(targets, session)
		}
		return true
	})

	concurrent.ParallelMute(sequence.From(targets), func(session *ViewerSession) error {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()

		writeErr := session.Connection.Write(ctx, data)
		if writeErr != nil {
			s.logger.Warn("Dropping viewer after failed write",
				log.String("viewer_id", session.ID),
				log.Error(writeErr))
			atomic.StoreInt32(&session.Active, 0)
			_ = session.Connection.Close()
		}
		return writeErr
	})
}

func (s *Server) sendHello(session *ViewerSession) error {
	msg, err := protocol.NewMessage(protocol.MsgHello, protocol.Hello{
		Server:    s.config.Name,
		Session:   session.ID,
		Digest:    s.state.Digest(),
		FrameRate: s.config.FrameRate,
	})
	if err != nil {
		return err
	}
	return s.send(session, msg)
}

// sendKeyframe hands one viewer the full drawable state. Dirty flags
// stay as they are; the other viewers still expect their deltas.
func (s *Server) sendKeyframe(session *ViewerSession) error {
	msg, err := protocol.NewMessage(protocol.MsgKeyframe, protocol.Keyframe{
		Frame:    atomic.LoadUint64(&s.frame),
		Digest:   s.state.Digest(),
		Entities: s.snapshotAll(false),
	})
	if err != nil {
		return err
	}
	return s.send(session, msg)
}

func (s *Server) send(session *ViewerSession, msg *protocol.Message) error {
	data, err := s.codec.Encode(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()
	return session.Connection.Write(ctx, data)
}
