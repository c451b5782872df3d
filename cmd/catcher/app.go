package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/fd1az/flashblocks-catcher/business/chain"
	"github.com/fd1az/flashblocks-catcher/business/game"
	"github.com/fd1az/flashblocks-catcher/internal/apm"
	"github.com/fd1az/flashblocks-catcher/internal/config"
	"github.com/fd1az/flashblocks-catcher/internal/health"
	"github.com/fd1az/flashblocks-catcher/internal/logger"
	"github.com/fd1az/flashblocks-catcher/internal/metrics"
	"github.com/fd1az/flashblocks-catcher/internal/monolith"
)

const shutdownTimeout = 10 * time.Second

// application is everything a command needs once wiring is done.
type application struct {
	cfg  *config.Config
	log  *logger.Logger
	mono monolith.Monolith

	start func(ctx context.Context) error
	stop  func()
}

// setup loads configuration and builds the application without starting
// any module.
func setup(ctx context.Context, tuiMode bool) (*application, error) {
	cfg, err := config.Load(globalFlags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set TUI mode in config so modules know
	cfg.TUIMode = tuiMode

	var out io.Writer = os.Stderr
	if tuiMode {
		// In TUI mode, suppress logs (discard output)
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug(ctx, fmt.Sprintf(format, args...))
	})); err != nil {
		log.Warn(ctx, "failed to set GOMAXPROCS", "error", err)
	}

	log.Info(ctx, "starting flashblocks catcher",
		"version", version,
		"environment", cfg.App.Environment,
		"chain_id", cfg.Chain.ChainID,
	)

	var closers []func(context.Context) error

	if cfg.Telemetry.Enabled {
		closers = append(closers, initTelemetry(ctx, cfg, log)...)
	}

	healthServer := health.NewServer(cfg.Server.Port, version, cfg.Server.CORSOrigins, log)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
		healthServer = nil
	} else {
		log.Info(ctx, "health server started", "addr", healthServer.Addr())
		closers = append(closers, healthServer.Stop)
	}

	mono := monolith.New(cfg, log, healthServer)

	// Define modules in dependency order
	modules := []monolith.Module{
		&chain.Module{}, // provides both block cadences, receipts and submission
		&game.Module{},  // ingestion, arena and confirmation race
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}

	app := &application{
		cfg:  cfg,
		log:  log,
		mono: mono,
	}
	app.start = func(ctx context.Context) error {
		if err := mono.StartModules(ctx, modules...); err != nil {
			return fmt.Errorf("failed to start modules: %w", err)
		}
		return nil
	}
	app.stop = func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := mono.Close(ctx); err != nil {
			log.Error(ctx, "error stopping modules", "error", err)
		}
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				log.Warn(ctx, "error during shutdown", "error", err)
			}
		}
		_ = log.Sync()
	}
	return app, nil
}

func initTelemetry(ctx context.Context, cfg *config.Config, log *logger.Logger) []func(context.Context) error {
	var closers []func(context.Context) error

	tp, err := apm.NewTraceProvider(log, apm.Provider(cfg.Telemetry.Provider), apm.ProviderSettings{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	})
	if err != nil {
		log.Warn(ctx, "tracing disabled", "error", err)
	} else {
		closers = append(closers, func(context.Context) error { return tp.Stop() })
	}

	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	}
	if cfg.Telemetry.Provider == string(apm.OTLPGRPCProvider) && cfg.Telemetry.OTLPEndpoint != "" {
		opts = append(opts, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(
			cfg.Telemetry.OTLPEndpoint,
			apm.ParseHeaders(cfg.Telemetry.OTLPHeaders),
			true,
		)))
	}

	mp, err := metrics.NewMetricProvider(opts...)
	if err != nil {
		log.Warn(ctx, "metrics disabled", "error", err)
		return closers
	}
	closers = append(closers, mp.Shutdown)

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	prom := metrics.ServePrometheusMetrics(log, metrics.WithPort(strconv.Itoa(port)))
	closers = append(closers, prom.Stop)

	return closers
}
