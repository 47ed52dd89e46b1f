package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"sanctioncore/internal/adapters/reports"
	"sanctioncore/internal/blob"
	"sanctioncore/internal/catalog"
	"sanctioncore/internal/config"
	"sanctioncore/internal/core"
)

type env struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

// app is a configured service plus the optional sweep report archive.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	svc     *core.Service
	archive *reports.Archive
}

func (e *env) config() (*config.Config, error) {
	cfg, err := config.LoadFrom(e.getenv)
	if err != nil {
		return nil, codeError(exitUsage, "%v", err)
	}
	return cfg, nil
}

// open wires the store, catalog and optional archive into a service. Extra
// options are applied after the configured ones.
func (e *env) open(ctx context.Context, withArchive bool, extra ...core.Option) (*app, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(e.stderr)
	cat, err := catalog.Resolve(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	store, err := core.OpenPersistentStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithBulkConcurrency(cfg.Engine.BulkConcurrency),
		core.WithMaxMutationAttempts(cfg.Engine.MaxMutationAttempts),
		core.WithReadAttempts(cfg.Engine.ReadAttempts),
	}
	a := &app{cfg: cfg, logger: logger}
	if withArchive {
		blobs, err := blob.Open(ctx, cfg.Blob)
		switch {
		case errors.Is(err, blob.ErrDisabled):
			logger.Info("sweep report archive disabled")
		case err != nil:
			_ = store.Close()
			return nil, fmt.Errorf("open report archive: %w", err)
		default:
			a.archive = reports.NewArchive(blobs, cfg.Blob.ReportPrefix, logger)
			opts = append(opts, core.WithSweepReporter(a.archive))
		}
	}
	a.svc = core.NewService(store, cat, append(opts, extra...)...)
	return a, nil
}

func (a *app) Close() error { return a.svc.Close() }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
