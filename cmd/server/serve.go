// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/multierr"

	"github.com/opentrusty/passhash/internal/audit"
	"github.com/opentrusty/passhash/internal/config"
	"github.com/opentrusty/passhash/internal/hasher"
	"github.com/opentrusty/passhash/internal/observability/logger"
	"github.com/opentrusty/passhash/internal/observability/metrics"
	"github.com/opentrusty/passhash/internal/observability/tracing"
	transportHTTP "github.com/opentrusty/passhash/internal/transport/http"
)

type serveCmd struct{}

func newServeCmd() subcommands.Command { return new(serveCmd) }

func (*serveCmd) Name() string             { return "serve" }
func (*serveCmd) Synopsis() string         { return "Start the HTTP hashing service." }
func (*serveCmd) Usage() string            { return "serve:\n  Start the HTTP hashing service. Configured from the environment.\n" }
func (*serveCmd) SetFlags(_ *flag.FlagSet) {}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return exitStatus(c.run(ctx))
}

func (c *serveCmd) run(ctx context.Context) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	}
	var logProvider *sdklog.LoggerProvider
	if cfg.Observability.OTELEnabled {
		if logProvider, err = logger.NewProvider(ctx, cfg.Observability.ServiceName, cfg.Observability.ServiceVersion); err != nil {
			return fmt.Errorf("failed to initialize log provider: %w", err)
		}
		logCfg.Provider = logProvider
	}
	logger.InitLogger(logCfg)
	slog.Info("starting passhash", slog.String("version", cfg.Observability.ServiceVersion))

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	meter, err := metrics.New(ctx, metrics.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}

	registry := metrics.NewRegistry()
	hashMetrics, err := metrics.NewHashMetrics(meter, registry)
	if err != nil {
		return fmt.Errorf("failed to initialize hash metrics: %w", err)
	}

	engine := hasher.NewEngine(
		hasher.WithSaltLength(cfg.Hasher.SaltLength),
		hasher.WithTracer(tracer.GetTracer()),
		hasher.WithObserver(hashMetrics),
	)

	handler := transportHTTP.NewHandler(
		engine,
		audit.NewSlogLogger(slog.Default()),
		hashMetrics,
		cfg.Observability.ServiceName,
	)

	routerCfg := transportHTTP.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
	}
	if cfg.Observability.MetricsEnabled {
		routerCfg.Metrics = metrics.Handler(registry)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      transportHTTP.NewRouter(handler, routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server",
			logger.Component("server"),
			logger.Operation("listen"),
			slog.String("addr", server.Addr),
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		err,
		server.Shutdown(shutdownCtx),
		tracer.Shutdown(shutdownCtx),
		meter.Shutdown(shutdownCtx),
	)
	if logProvider != nil {
		err = multierr.Append(err, logProvider.Shutdown(shutdownCtx))
	}
	if err == nil {
		slog.Info("server stopped")
	}
	return err
}
