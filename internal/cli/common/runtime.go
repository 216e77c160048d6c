package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuihairu/gamelib/internal/config"
	"github.com/cuihairu/gamelib/internal/datareader"
	"github.com/cuihairu/gamelib/internal/events"
	"github.com/cuihairu/gamelib/internal/objstore"
	"github.com/cuihairu/gamelib/internal/ports"
	"github.com/cuihairu/gamelib/internal/repo"
	"github.com/cuihairu/gamelib/internal/service/catalog"
	"github.com/cuihairu/gamelib/internal/telemetry"
	"go.opentelemetry.io/otel"
)

// Runtime is everything a command needs, built once from the effective
// config and torn down by Close.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Repo    ports.Repository
	Reader  *datareader.Reader
	Service *catalog.Service
	Events  events.Publisher
	Opener  *objstore.Opener

	telemetry    *telemetry.Provider
	closeRepo    func() error
	closeHandles []func() error
}

// Open wires the runtime. The repository session is reset so every command
// starts from a fresh unit of work.
func Open(ctx context.Context, cfg *config.Config) (rt *Runtime, err error) {
	logger := SetupLogger(cfg.Log)
	rt = &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close(ctx)
			rt = nil
		}
	}()

	if rt.telemetry, err = telemetry.NewProvider(ctx, cfg.Telemetry); err != nil {
		return rt, fmt.Errorf("telemetry: %w", err)
	}
	metrics, err := telemetry.NewIngestMetrics(otel.Meter(telemetry.ScopeName))
	if err != nil {
		return rt, fmt.Errorf("metrics: %w", err)
	}

	kind, err := repo.ParseKind(cfg.Repository)
	if err != nil {
		return rt, err
	}
	rt.Repo, rt.closeRepo, err = repo.Open(ctx, repo.Config{Kind: kind, Database: cfg.Database.DB(), Logger: logger})
	if err != nil {
		return rt, err
	}
	if err = rt.Repo.ResetSession(ctx); err != nil {
		return rt, err
	}

	if rt.Events, err = events.Open(cfg.Events, logger); err != nil {
		return rt, fmt.Errorf("events: %w", err)
	}
	rt.closeHandles = append(rt.closeHandles, rt.Events.Close)

	rt.Opener = objstore.NewOpener(cfg.Data.Store())
	rt.closeHandles = append(rt.closeHandles, rt.Opener.Close)

	rt.Reader = datareader.New(rt.Repo,
		datareader.WithLogger(logger),
		datareader.WithOpener(rt.Opener),
		datareader.WithMetrics(metrics),
	)
	rt.Service = catalog.NewService(rt.Repo,
		catalog.WithLogger(logger),
		catalog.WithEvents(rt.Events),
		catalog.WithReader(rt.Reader),
	)
	return rt, nil
}

// Close ends the repository session and releases every handle, reporting
// all failures.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Repo != nil {
		errs = append(errs, rt.Repo.Close())
	}
	if rt.closeRepo != nil {
		errs = append(errs, rt.closeRepo())
	}
	for _, c := range rt.closeHandles {
		errs = append(errs, c())
	}
	if rt.telemetry != nil {
		errs = append(errs, rt.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// EnsureLoaded ingests data.path when the repository holds no games: always
// for the memory backend, on first use for a database.
func (rt *Runtime) EnsureLoaded(ctx context.Context) error {
	n, err := rt.Repo.NumberOfGames(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	st, err := rt.Service.Ingest(ctx, rt.Config.Data.Path)
	if err != nil {
		return fmt.Errorf("load %s: %w", rt.Config.Data.Path, err)
	}
	rt.Logger.Debug("catalog loaded", "games", st.Games, "skipped", st.Skipped)
	return nil
}
