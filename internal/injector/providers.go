package injector

import (
	"github.com/openrts/openrts/internal/config"
	"github.com/openrts/openrts/internal/core/events/bus"
	"github.com/openrts/openrts/internal/core/gamestate"
	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/core/sim"
	"github.com/openrts/openrts/internal/server"
)

// App bundles every long-lived component of a running server process.
type App struct {
	Config     config.Config
	Logger     *log.Logger
	Events     bus.EventBus
	State      *gamestate.GameState
	Factory    *gamestate.Factory
	Server     *server.Server
	Simulation *sim.Simulation
}

func ProvideLogger(cfg config.Config) *log.Logger {
	return log.New(log.ParseLevel(cfg.Logging.Level))
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideGameState(events bus.EventBus, logger *log.Logger) *gamestate.GameState {
	return gamestate.NewGameState(events, logger)
}

// ProvideFactory builds the entity factory and, when the config names a
// template file, loads it.
func ProvideFactory(cfg config.Config, logger *log.Logger) (*gamestate.Factory, error) {
	factory := gamestate.NewFactory(logger)
	if cfg.Simulation.Templates != "" {
		if err := factory.LoadTemplatesFile(cfg.Simulation.Templates); err != nil {
			return nil, err
		}
	}
	return factory, nil
}

func ProvideServerConfig(cfg config.Config) server.Config {
	return server.Config{
		Name:             cfg.Server.Name,
		WebSocketAddr:    cfg.Server.WebSocketAddr,
		QUICAddr:         cfg.Server.QUICAddr,
		MaxViewers:       cfg.Server.MaxViewers,
		FrameRate:        cfg.Server.FrameRate,
		KeyframeInterval: cfg.Server.KeyframeInterval,
		WriteTimeout:     cfg.Server.WriteTimeout.Std(),
		ReadTimeout:      cfg.Server.ReadTimeout.Std(),
		LogLevel:         log.ParseLevel(cfg.Logging.Level),
	}
}

func ProvideServer(state *gamestate.GameState, events bus.EventBus, cfg server.Config) *server.Server {
	return server.NewServer(state, events, cfg)
}

// ProvideSimulation wires the standard system set into the loop.
func ProvideSimulation(cfg config.Config, state *gamestate.GameState, factory *gamestate.Factory) *sim.Simulation {
	simulation := sim.NewSimulation(state, factory, cfg.Simulation.TickRate)
	_ = simulation.AddSystem(sim.NewMovementSystem(cfg.Simulation.MoveSpeed), 0)
	return simulation
}
