package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"fts/internal/deidentify/compartment"
	"fts/internal/platform/config"
	"fts/internal/platform/httpserver"
	"fts/internal/platform/logger"
	"fts/internal/platform/metrics"
	"fts/internal/platform/redis"
	"fts/internal/trustcenter/backend"
	"fts/internal/trustcenter/dateshift"
	"fts/internal/trustcenter/handler"
	"fts/internal/trustcenter/store"
	"fts/internal/trustcenter/transport"
	"fts/pkg/platform/circuit"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the broker HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runServer(cmd.Context(), configPath)
		},
	}
	cmd.Flags().String("config", "", "Optional YAML config file; environment variables take precedence")
	return cmd
}

func runServer(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	preserve, err := dateshift.ParsePreserve(cfg.TransportMapping.DefaultPreserve)
	if err != nil {
		return fmt.Errorf("transport_mapping.default_preserve: %w", err)
	}
	policy, err := compartment.DefaultPolicy()
	if err != nil {
		return fmt.Errorf("load compartment policy: %w", err)
	}
	log.Debug("compartment policy loaded", "resource_types", policy.ResourceTypes())

	m := metrics.New()
	adapter, err := backend.NewRegistry().Build(backend.Config{
		Type:               backend.Type(strings.ToLower(cfg.Backend.Type)),
		BaseURL:            cfg.Backend.BaseURL,
		Timeout:            cfg.Backend.Timeout,
		Concurrency:        cfg.Backend.Concurrency,
		EnticiResourceType: cfg.Backend.EnticiResourceType,
		EnticiProject:      cfg.Backend.EnticiProject,
	})
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var breaker *circuit.Breaker
	if cfg.Backend.BreakerThreshold > 0 {
		breaker = circuit.New(string(adapter.Type()),
			circuit.WithFailureThreshold(cfg.Backend.BreakerThreshold),
			circuit.WithCooldown(cfg.Backend.BreakerCooldown),
		)
	}
	guarded := backend.Guard(backend.Instrument(adapter, m), breaker, log)

	svc, err := transport.New(guarded, st,
		transport.WithLogger(log),
		transport.WithMetrics(m),
		transport.WithPolicy(policy),
		transport.WithTTL(cfg.TransportMapping.TTL),
	)
	if err != nil {
		return err
	}

	h := handler.New(svc, log, handler.Defaults{
		MaxDateShift: cfg.TransportMapping.DefaultMaxDateShift,
		Preserve:     preserve,
	})
	srv := httpserver.New(cfg.Server.Addr, handler.NewRouter(h, promhttp.Handler()), cfg.Server.ReadHeaderTimeout)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting broker", "addr", cfg.Server.Addr, "backend", adapter.Type())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("broker stopped")
	return nil
}

// openStore returns the Redis store, or the in-memory store when no Redis URL
// is configured.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (transport.Store, func(), error) {
	if cfg.UsesMemoryStore() {
		log.Warn("REDIS_URL not set, using in-memory transfer store; state is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return store.NewRedisStore(client.Client), func() { _ = client.Close() }, nil
}
