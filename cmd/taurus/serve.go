package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/NotCreative21/taurus/internal/backup"
	"github.com/NotCreative21/taurus/internal/backup/providers"
	"github.com/NotCreative21/taurus/internal/capture"
	"github.com/NotCreative21/taurus/internal/config"
	"github.com/NotCreative21/taurus/internal/inject"
	"github.com/NotCreative21/taurus/internal/logging"
	"github.com/NotCreative21/taurus/internal/rcon"
	"github.com/NotCreative21/taurus/internal/relay"
	"github.com/NotCreative21/taurus/internal/tmux"
	"github.com/NotCreative21/taurus/internal/workerpool"
	"github.com/NotCreative21/taurus/internal/ws"
)

var log = logging.L("main")

const drainTimeout = 10 * time.Second

func serve(ctx context.Context, cfg *config.Config) error {
	if !tmux.IsAvailable() {
		log.Warn("tmux not found on PATH; capture and keystroke injection will fail")
	}
	mux := tmux.New()

	provider, err := providers.FromConfig(ctx, cfg.Backup)
	if err != nil {
		return err
	}

	pool := workerpool.New(cfg.Relay.Workers, cfg.Relay.QueueSize)
	registry := ws.NewRegistry(0)
	engine := relay.New(cfg, relay.Deps{
		Store:    capture.NewStore(mux),
		Bus:      registry,
		Injector: inject.New(cfg.Sessions, mux, rcon.NetDialer{Timeout: cfg.Relay.RCONTimeout}),
		Backups:  backup.NewManager(provider),
		Status:   relay.NewStatusProbe(mux),
		Pool:     pool,
	})

	server := ws.NewServer(registry, cfg.Server.Path, engine.HandleInbound)
	httpMux := http.NewServeMux()
	server.SetupRoutes(httpMux)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		engine.Start(ctx)
	}()

	err = ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, httpMux)
	cancel()
	<-relayDone

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	pool.Drain(drainCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
