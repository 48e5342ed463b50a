package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Foresight/internal/domain/repository"
	"Foresight/internal/usecase"
	"Foresight/pkg/config"
	xhttp "Foresight/pkg/http"
	applogger "Foresight/pkg/logger"
)

// App encapsulates the entire application lifecycle: the HTTP API plus the
// periodic grading and consensus loops.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	grader     *usecase.Grader
	aggregator *usecase.Aggregator
	store      repository.ForecastStore
	archive    repository.SnapshotArchive
	publisher  repository.Publisher
	httpServer *xhttp.Server
	handler    xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	grader *usecase.Grader,
	aggregator *usecase.Aggregator,
	store repository.ForecastStore,
	archive repository.SnapshotArchive,
	publisher repository.Publisher,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		grader:     grader,
		aggregator: aggregator,
		store:      store,
		archive:    archive,
		publisher:  publisher,
		handler:    handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.store.Init(ctx); err != nil {
		a.logger.Error("store init error", applogger.Error(err))
		return err
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	go a.gradingLoop(ctx)
	go a.consensusLoop(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("grading_interval", a.cfg.Grading.Interval.String()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// gradingLoop runs one grading pass immediately, then on every tick.
// Passes never overlap: the next tick waits for the previous run to return.
func (a *App) gradingLoop(ctx context.Context) {
	a.runGrading(ctx)

	ticker := time.NewTicker(a.cfg.Grading.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runGrading(ctx)
		}
	}
}

func (a *App) runGrading(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Grading.RunTimeout)
	defer cancel()
	if err := a.grader.Run(runCtx); err != nil {
		a.logger.Error("grading run failed", applogger.Error(err))
	}
}

func (a *App) consensusLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Consensus.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, a.cfg.Grading.RunTimeout)
			if err := a.aggregator.Run(runCtx); err != nil {
				a.logger.Error("consensus run failed", applogger.Error(err))
			}
			cancel()
		}
	}
}

// shutdown gracefully stops the HTTP server and closes infrastructure clients.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("archive close error", applogger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
