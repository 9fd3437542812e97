package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rentchain/config"
	"rentchain/core"
	"rentchain/core/events"
	"rentchain/core/genesis"
	"rentchain/core/receipts"
	"rentchain/indexer"
	"rentchain/observability"
	"rentchain/observability/logging"
	telemetry "rentchain/observability/otel"
	"rentchain/rpc"
	"rentchain/storage"
)

const (
	genesisPathEnv  = "RENT_GENESIS"
	envNameEnv      = "RENT_ENV"
	otlpHeadersEnv  = "OTEL_EXPORTER_OTLP_HEADERS"
	idempotencyTTL  = 24 * time.Hour
	pruneInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON or YAML file (overrides RENT_GENESIS and config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	env := strings.TrimSpace(os.Getenv(envNameEnv))
	if env == "" {
		env = cfg.Logging.Env
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	if err := run(cfg, resolveGenesisPath(*genesisFlag, cfg.GenesisFile), env, logger); err != nil {
		logger.Error("rentd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func resolveGenesisPath(flagValue, configValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(genesisPathEnv); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(configValue)
}

func run(cfg *config.Config, genesisPath, env string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: env,
		Network:     cfg.NetworkName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv(otlpHeadersEnv)),
		Metrics:     cfg.Telemetry.MetricsEnabled,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}

	var spec *genesis.Spec
	if genesisPath != "" {
		spec, err = genesis.LoadSpec(genesisPath)
		if err != nil {
			return err
		}
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"), 0, 0)
	if err != nil {
		return err
	}

	policy, err := cfg.RentalPolicy()
	if err != nil {
		_ = db.Close()
		return err
	}
	node, err := core.NewNode(db, spec, core.Options{
		Policy:         policy,
		MinStayFloor:   cfg.Policy.MinStayFloorDays,
		RewardsEnabled: cfg.Rewards.Enabled,
		Logger:         logger,
	})
	if err != nil {
		_ = db.Close()
		if errors.Is(err, core.ErrNoGenesis) {
			return fmt.Errorf("%w: pass -genesis or set %s", err, genesisPathEnv)
		}
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			logger.Warn("close chain database", slog.Any("error", err))
		}
	}()

	receiptStore, err := receipts.Open(filepath.Join(cfg.DataDir, "receipts.db"), nil)
	if err != nil {
		return fmt.Errorf("open receipts: %w", err)
	}
	defer receiptStore.Close()
	node.SetReceiptStore(receiptStore)
	node.SetObserver(observability.Ledger())

	emitters := events.Multi{observability.Events()}
	if driver := strings.TrimSpace(cfg.Indexer.Driver); driver != "" {
		idx, err := indexer.Open(driver, cfg.Indexer.DSN, logger)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer func() {
			if err := idx.Close(); err != nil {
				logger.Warn("close indexer", slog.Any("error", err))
			}
			if dropped := idx.Dropped(); dropped > 0 {
				logger.Warn("indexer dropped events", slog.Uint64("count", dropped))
			}
		}()
		emitters = append(emitters, idx)
	}
	node.SetEmitter(emitters)

	serverCfg := rpc.ServerConfig{
		ListenAddress:      cfg.RPC.ListenAddress,
		MaxConnections:     cfg.RPC.MaxConnections,
		ReadHeaderTimeout:  cfg.RPC.ReadHeaderTimeoutDuration(),
		ReadTimeout:        cfg.RPC.ReadTimeoutDuration(),
		WriteTimeout:       cfg.RPC.WriteTimeoutDuration(),
		IdleTimeout:        cfg.RPC.IdleTimeoutDuration(),
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		Auth: rpc.AuthConfig{
			Issuer:   cfg.RPC.Auth.Issuer,
			Audience: cfg.RPC.Auth.Audience,
		},
	}
	if name := strings.TrimSpace(cfg.RPC.Auth.JWTSecretEnv); name != "" {
		serverCfg.Auth.HMACSecret = strings.TrimSpace(os.Getenv(name))
	}
	if serverCfg.Auth.HMACSecret == "" {
		logger.Warn("admin bearer tokens disabled; admin calls rely on signed envelopes only")
	}
	if cfg.Telemetry.MetricsEnabled {
		serverCfg.Gatherer = prometheus.DefaultGatherer
	}
	if path := strings.TrimSpace(cfg.RPC.IdempotencyDB); path != "" {
		store, err := rpc.OpenIdempotencyStore(path)
		if err != nil {
			return fmt.Errorf("open idempotency store: %w", err)
		}
		defer store.Close()
		serverCfg.Idempotency = store
		go pruneIdempotency(ctx, store, logger)
	}

	status := node.Status()
	logger.Info("rentd starting",
		slog.String("network", cfg.NetworkName),
		slog.Uint64("height", status.Height),
		slog.String("stateRoot", status.StateRoot.Hex()),
		slog.String("listen", cfg.RPC.ListenAddress),
		slog.String("availabilityLock", policy.AvailabilityLock.String()))

	server := rpc.NewServer(node, serverCfg, logger)
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("rpc server: %w", err)
	}
	logger.Info("rentd shut down", slog.Uint64("height", node.Height()))
	return nil
}

func pruneIdempotency(ctx context.Context, store *rpc.IdempotencyStore, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Prune(ctx, idempotencyTTL)
			if err != nil {
				logger.Warn("prune idempotency keys", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				logger.Debug("pruned idempotency keys", slog.Int64("removed", removed))
			}
		}
	}
}
