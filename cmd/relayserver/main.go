// Package main provides the relay server binary: a websocket presence and
// chat relay for location-scoped multiplayer sessions.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/parkline/relay/internal/config"
	"github.com/parkline/relay/internal/frontend/ws"
	"github.com/parkline/relay/internal/observability"
	"github.com/parkline/relay/internal/relay/reaper"
	"github.com/parkline/relay/internal/relay/router"
	"github.com/parkline/relay/internal/relay/session"
	"github.com/parkline/relay/internal/relay/stats"
	"github.com/parkline/relay/internal/relay/world"
	"github.com/parkline/relay/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = defaults plus environment")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	catalog := world.DefaultCatalog()
	if cfg.Relay.LocationsFile != "" {
		catalog, err = world.LoadCatalogFromFile(cfg.Relay.LocationsFile)
		if err != nil {
			logger.Fatal("loading location catalog", zap.Error(err))
		}
	}
	logger.Info("location catalog loaded",
		zap.Int("locations", len(catalog.IDs())),
		zap.String("default", catalog.Default()),
	)

	registry := session.NewRegistry()
	rtr := router.New(registry, catalog.Default(), logger)

	acceptor := ws.NewAcceptor(cfg.Relay, rtr, logger)
	sweeper := reaper.New(registry, rtr, cfg.Relay.ReapInterval, cfg.Relay.IdleTimeout, logger)
	reporter := stats.New(registry, catalog, cfg.Relay.StatsInterval, logger)

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn: func() {
			// Advisory shutdown notice before connections close.
			rtr.Shutdown()
			acceptor.Stop()
		},
	})
	lifecycle.Add("reaper", sweeper)
	lifecycle.Add("stats", reporter)

	logger.Info("relay server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Relay.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
