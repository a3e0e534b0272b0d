package client

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/bus"
	"github.com/MKhiriev/go-spirit-connect/internal/config"
	"github.com/MKhiriev/go-spirit-connect/internal/handler"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/server"
	"github.com/MKhiriev/go-spirit-connect/internal/service"
	"github.com/MKhiriev/go-spirit-connect/internal/store"
	"github.com/MKhiriev/go-spirit-connect/internal/workers"
	"github.com/MKhiriev/go-spirit-connect/models"
)

const eventBuffer = 64

type App struct {
	manager  *store.Manager
	services *service.ClientServices
	events   *bus.Bus
	workers  *workers.Workers

	logger *logger.Logger
}

// NewApp wires the store, the server adapter, the services and the
// background workers described by cfg. Nothing runs until Run is called.
func NewApp(cfg *config.ClientConfig, buildInfo models.AppBuildInfo, log *logger.Logger) (*App, error) {
	manager := store.NewManager(store.DefaultSchema(), openerFor(cfg.Storage.DB, log), log)
	records := store.NewRecords(manager, log)

	serverAdapter, err := adapter.NewHTTPServerAdapter(cfg.Adapter, cfg.App, log)
	if err != nil {
		return nil, fmt.Errorf("create server adapter: %w", err)
	}

	events := bus.New()
	services := service.NewClientServices(records, serverAdapter, events, cfg, log)

	background := []workers.Worker{
		workers.NewJobWorker(services.SyncJob, cfg.Workers.SyncInterval),
		workers.NewConnectivityProbe(serverAdapter, services.SyncService, cfg.Workers.ProbeInterval, log),
	}

	if path, ok := store.FilePath(cfg.Storage.DB.DSN); ok && cfg.Workers.WatchStore && cfg.Storage.DB.Driver != config.DriverMemory {
		background = append(background, workers.NewStoreWatcher(path, services.SyncService, events, log))
	}

	controlServer, err := newControlServer(services, serverAdapter, buildInfo, cfg.Control, log)
	if err != nil {
		return nil, err
	}
	if controlServer != nil {
		background = append(background, controlServer)
	}

	return &App{
		manager:  manager,
		services: services,
		events:   events,
		workers:  workers.NewWorkers(background...),
		logger:   log,
	}, nil
}

func openerFor(cfg config.ClientDB, log *logger.Logger) store.Opener {
	if cfg.Driver == config.DriverMemory {
		return store.MemoryOpener(cfg.DSN)
	}
	return store.SQLiteOpener(cfg, log)
}

// newControlServer returns nil when no control address is configured.
func newControlServer(
	services *service.ClientServices,
	serverAdapter adapter.ServerAdapter,
	buildInfo models.AppBuildInfo,
	cfg config.ClientControl,
	log *logger.Logger,
) (server.Server, error) {
	handlers, err := handler.NewHandlers(services, serverAdapter, buildInfo, cfg, log)
	if handler.IsNoHandlers(err) {
		log.Info().Msg("control API disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create handlers: %w", err)
	}

	srv, err := server.NewServer(handlers, cfg, log)
	if server.IsDisabled(err) {
		log.Info().Msg("control API disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create control server: %w", err)
	}
	return srv, nil
}

// Run opens the store, starts the workers and blocks until SIGINT, SIGTERM
// or SIGQUIT.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	ctx = a.logger.WithContext(ctx)

	if _, err := a.manager.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.manager.Close(); err != nil {
			a.logger.Err(err).Msg("failed to close local store")
		}
	}()

	pending, err := a.services.SyncService.RefreshPending(ctx)
	if err != nil {
		return fmt.Errorf("count pending rows: %w", err)
	}
	a.logger.Info().
		Int("pending", pending).
		Int("workers", a.workers.Len()).
		Msg("sync agent started")

	go a.logEvents(ctx)

	if err = a.workers.Run(ctx); err != nil {
		return fmt.Errorf("workers stopped: %w", err)
	}

	a.logger.Info().Msg("sync agent stopped")
	return nil
}

// logEvents writes every bus event to the log until ctx is done.
func (a *App) logEvents(ctx context.Context) {
	ch, unsubscribe := a.events.Subscribe("", eventBuffer)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			a.logger.Debug().
				Str("kind", evt.Kind).
				Time("at", evt.Timestamp).
				Interface("payload", evt.Payload).
				Msg("event")
		}
	}
}
