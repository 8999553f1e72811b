package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/openrts/openrts/internal/core/observability/log"
	"github.com/openrts/openrts/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	app, err := injector.InitializeApp(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize:", err)
		os.Exit(1)
	}

	logger := app.Logger.With(log.String("component", "main"))

	// A configured template library doubles as the demo scene: one unit
	// per template, spawned before any viewer can connect.
	names := app.Factory.Templates()
	sort.Strings(names)
	for _, name := range names {
		unit, err := app.Factory.Spawn(name)
		if err != nil {
			logger.Fatal("Failed to spawn template", log.String("template", name), log.Error(err))
		}
		if err = app.State.Add(unit); err != nil {
			logger.Fatal("Failed to add entity", log.Uint64("id", uint64(unit.ID())), log.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = app.Server.Start(ctx); err != nil {
		logger.Fatal("Failed to start server", log.Error(err))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return app.Simulation.Run(groupCtx)
	})

	logger.Info("Server is up",
		log.String("name", app.Config.Server.Name),
		log.Int("entities", app.State.Len()))

	<-groupCtx.Done()
	stop()

	if err = app.Server.Stop(context.Background()); err != nil {
		logger.Error("Failed to stop server", log.Error(err))
	}

	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Simulation exited with error", log.Error(err))
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
