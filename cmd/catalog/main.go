// cmd/catalog/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"libracatalog/internal/catalog"
	"libracatalog/internal/config"
	"libracatalog/internal/eventstore"
	"libracatalog/internal/logging"
	"libracatalog/internal/server"
	"libracatalog/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		logger := logging.Logger()
		logger.Fatal().Err(err).Msg("catalog service failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stdout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     server.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger := logging.Logger()
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	var opts []catalog.Option
	if cfg.Catalog.WriteRate > 0 {
		opts = append(opts, catalog.WithWriteLimit(rate.Limit(cfg.Catalog.WriteRate), cfg.Catalog.WriteBurst))
	}

	store := catalog.NewStore()
	es := eventstore.NewEventStore(nil)
	svc := catalog.NewService(store, es, opts...)
	handler := catalog.NewHandler(svc)

	return server.New(cfg, handler).Run(ctx)
}
