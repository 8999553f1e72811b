//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/openrts/openrts/internal/config"
)

// InitializeApp assembles the full server stack from a config file path.
func InitializeApp(configPath string) (*App, error) {
	wire.Build(
		config.LoadFile,
		ProvideLogger,
		ProvideEventBus,
		ProvideGameState,
		ProvideFactory,
		ProvideServerConfig,
		ProvideServer,
		ProvideSimulation,
		wire.Struct(new(App), "*"),
	)
	return nil, nil
}
