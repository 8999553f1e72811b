package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/pkg/sequence"
)

// System is one slice of game logic, run once per simulation tick.
type System interface {
	Name() string
	Update(state *gamestate.GameState, dt float64) error
}

type registeredSystem struct {
	system   System
	priority int
}

// Simulation drives registered systems over a game state at a fixed
// tick rate. Systems run on the simulation goroutine in priority order,
// lowest first, so there is exactly one writer to the state while the
// loop runs.
type Simulation struct {
	state   *gamestate.GameState
	factory *gamestate.Factory

	mu      sync.Mutex
	systems []registeredSystem
	resort  bool

	tickRate int
	ticks    uint64 // atomic

	running int32 // atomic bool

	logger log.Log
}

// NewSimulation creates a simulation over the given state. The factory
// rides along so callers that hold the simulation can keep spawning
// from the same id sequence.
func NewSimulation(state *gamestate.GameState, factory *gamestate.Factory, tickRate int) *Simulation {
	return &Simulation{
		state:    state,
		factory:  factory,
		tickRate: tickRate,
		logger:   log.Provide().With(log.String("component", "sim")),
	}
}

// State returns the simulated game state.
func (s *Simulation) State() *gamestate.GameState { return s.state }

// Factory returns the entity factory, may be nil.
func (s *Simulation) Factory() *gamestate.Factory { return s.factory }

// Ticks returns the number of completed ticks.
func (s *Simulation) Ticks() uint64 { return atomic.LoadUint64(&s.ticks) }

// AddSystem registers a system. Lower priorities run earlier within a
// tick. Registration order breaks ties.
func (s *Simulation) AddSystem(system System, priority int) error {
	if system == nil {
		return ErrNilSystem
	}

	s.mu.Lock()
	s.systems = append(s.systems, registeredSystem{system: system, priority: priority})
	s.resort = true
	s.mu.Unlock()

	s.logger.Debug("System registered",
		log.String("system", system.Name()),
		log.Int("priority", priority))

	return nil
}

// RemoveSystem unregisters the named system.
func (s *Simulation) RemoveSystem(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, reg := range s.systems {
		if reg.system.Name() == name {
			copy(s.systems[i:], s.systems[i+1:])
			s.systems = s.systems[:len(s.systems)-1]
			return
		}
	}
}

// Systems returns the registered system names in execution order.
func (s *Simulation) Systems() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sortLocked()
	return sequence.ToArray(sequence.From(s.systems), func(reg registeredSystem) string {
		return reg.system.Name()
	})
}

func (s *Simulation) sortLocked() {
	if !s.resort {
		return
	}
	sort.SliceStable(s.systems, func(i, j int) bool {
		return s.systems[i].priority < s.systems[j].priority
	})
	s.resort = false
}

// Step runs a single tick. The first failing system aborts the tick and
// its error comes back wrapped with the system name.
func (s *Simulation) Step(dt float64) error {
	s.mu.Lock()
	s.sortLocked()
	systems := make([]registeredSystem, len(s.systems))
	copy(systems, s.systems)
	s.mu.Unlock()

	for _, reg := range systems {
		if err := reg.system.Update(s.state, dt); err != nil {
			return fmt.Errorf("system %s: %w", reg.system.Name(), err)
		}
	}

	atomic.AddUint64(&s.ticks, 1)
	return nil
}

// Run drives Step at the fixed tick rate until the context ends or a
// system fails. It returns the context's error on orderly shutdown.
func (s *Simulation) Run(ctx context.Context) error {
	if s.tickRate <= 0 {
		return ErrInvalidTickRate
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrSimulationRunning
	}
	defer atomic.StoreInt32(&s.running, 0)

	interval := time.Second / time.Duration(s.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Simulation loop started",
		log.Int("tick_rate", s.tickRate),
		log.Int("systems", len(s.Systems())))

	dt := interval.Seconds()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Simulation loop stopped",
				log.Uint64("ticks", atomic.LoadUint64(&s.ticks)))
			return ctx.Err()
		case <-ticker.C:
			if err := s.Step(dt); err != nil {
				s.logger.Error("Simulation tick failed", log.Error(err))
				return err
			}
		}
	}
}
