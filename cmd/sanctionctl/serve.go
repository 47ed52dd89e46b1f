package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"sanctioncore/internal/adapters/httpapi"
	"sanctioncore/internal/core"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics, err := core.NewPrometheusMetrics(reg)
			if err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}
			a, err := e.open(ctx, true, core.WithMetrics(metrics))
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					a.logger.Error("close store", "error", err)
				}
			}()
			if addr == "" {
				addr = a.cfg.Addr
			}
			return serve(ctx, a, reg, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to SANCTIONCORE_ADDR)")
	return cmd
}

func serve(ctx context.Context, a *app, gatherer prometheus.Gatherer, addr string) error {
	limiter := httpapi.NewRateLimiter(a.cfg.HTTP.RateLimitRPS, a.cfg.HTTP.RateLimitBurst)
	go limiter.Run(ctx)

	deps := httpapi.Deps{Service: a.svc, Gatherer: gatherer, Limiter: limiter, Logger: a.logger}
	if a.archive != nil {
		deps.Reports = a.archive
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(deps),
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.logger.Info("http api listening", "addr", addr, "storage", a.cfg.Storage.Driver, "blob", a.cfg.Blob.Driver)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
