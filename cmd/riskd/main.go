package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	httpadapter "github.com/couchcryptid/hazard-risk-engine/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hazard-risk-engine/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-risk-engine/internal/aggregate"
	"github.com/couchcryptid/hazard-risk-engine/internal/cache"
	"github.com/couchcryptid/hazard-risk-engine/internal/config"
	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/health"
	"github.com/couchcryptid/hazard-risk-engine/internal/normalize"
	"github.com/couchcryptid/hazard-risk-engine/internal/observability"
	"github.com/couchcryptid/hazard-risk-engine/internal/provider"
	"github.com/couchcryptid/hazard-risk-engine/internal/provider/commercial"
	"github.com/couchcryptid/hazard-risk-engine/internal/provider/govindex"
	"github.com/couchcryptid/hazard-risk-engine/internal/provider/hydromet"
	"github.com/couchcryptid/hazard-risk-engine/internal/ratelimit"
)

func main() {
	// Local development convenience; a missing .env file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	monitor := health.NewMonitor(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Response cache: Redis when configured, in-process otherwise.
	var store cache.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		store = cache.NewRedisStore(client, "hazard-risk")
		logger.Info("redis cache enabled", "addr", cfg.RedisAddr)
	} else {
		mem := cache.NewMemoryStore(nil)
		go mem.Janitor(ctx, time.Minute)
		store = mem
		logger.Info("in-process cache enabled")
	}

	type providerSetup struct {
		cfg       config.ProviderConfig
		desc      domain.ProviderDescriptor
		remote    provider.Remote
		operation string
	}

	var setups []providerSetup
	if cfg.GovIndex.Enabled {
		desc := cfg.GovIndex.Descriptor(govindex.Name, domain.AllHazards())
		setups = append(setups, providerSetup{
			cfg:       cfg.GovIndex,
			desc:      desc,
			remote:    govindex.NewRemote(cfg.GovIndex.BaseURL, cfg.GovIndex.Timeout, logger),
			operation: govindex.OperationRisk,
		})
	}
	if cfg.Commercial.Enabled {
		desc := cfg.Commercial.Descriptor(commercial.Name, domain.AllHazards())
		setups = append(setups, providerSetup{
			cfg:       cfg.Commercial,
			desc:      desc,
			remote:    commercial.NewRemote(cfg.Commercial.BaseURL, cfg.Commercial.APIKey, cfg.Commercial.Timeout, logger),
			operation: commercial.OperationScores,
		})
	}
	if cfg.Hydromet.Enabled {
		desc := cfg.Hydromet.Descriptor(hydromet.Name, []domain.HazardType{domain.HazardFlood})
		setups = append(setups, providerSetup{
			cfg:       cfg.Hydromet,
			desc:      desc,
			remote:    hydromet.NewRemote(cfg.Hydromet.BaseURL, cfg.Hydromet.Timeout, logger),
			operation: hydromet.OperationGauges,
		})
	}

	descriptors := make([]domain.ProviderDescriptor, len(setups))
	policies := make(map[string]domain.RatePolicy, len(setups))
	for i, s := range setups {
		descriptors[i] = s.desc
		policies[s.desc.Name] = s.desc.Rate
	}
	registry, err := domain.NewRegistry(descriptors)
	if err != nil {
		logger.Error("invalid provider configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("provider registry initialized", "providers", registry.Names())

	limiter := ratelimit.NewLimiter(policies, nil)
	retry := provider.RetryPolicy{
		MaxRetries:     cfg.RetryMax,
		InitialBackoff: cfg.RetryBaseDelay,
		MaxBackoff:     cfg.GlobalDeadline / 2,
	}

	sources := make([]aggregate.Source, len(setups))
	providerNames := make([]string, len(setups))
	for i, s := range setups {
		// Clients take their descriptor from the registry, the validated
		// process-wide owner, rather than the raw config structs.
		desc, ok := registry.Lookup(s.desc.Name)
		if !ok {
			logger.Error("provider missing from registry", "provider", s.desc.Name)
			os.Exit(1)
		}
		client := provider.NewClient(desc, s.remote, provider.Deps{
			Limiter:     limiter,
			Store:       store,
			Monitor:     monitor,
			Metrics:     metrics,
			Logger:      logger,
			Retry:       retry,
			CallTimeout: s.cfg.Timeout,
		})
		sources[i] = aggregate.Source{Client: client, Operation: s.operation}
		providerNames[i] = desc.Name
		logger.Info("provider enabled", "provider", desc.Name, "weight", desc.Weight)
	}

	engine := aggregate.New(sources, normalize.NewDefaultTable(), logger, metrics, cfg.GlobalDeadline)

	// Downstream publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher httpadapter.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAssessTopic, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaAssessTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, engine, monitor, publisher, httpadapter.Defaults{
		Providers:          providerNames,
		Hazards:            domain.AllHazards(),
		PerProviderTimeout: cfg.PerProviderTimeout,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
