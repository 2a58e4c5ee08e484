package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
)

// ProviderConfig holds the settings for one upstream hazard provider.
type ProviderConfig struct {
	Enabled    bool
	BaseURL    string
	APIKey     string
	Weight     float64
	RateMax    int
	RateWindow time.Duration
	CacheTTL   time.Duration
	Timeout    time.Duration
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	PerProviderTimeout time.Duration
	GlobalDeadline     time.Duration
	RetryMax           int
	RetryBaseDelay     time.Duration

	GovIndex   ProviderConfig
	Commercial ProviderConfig
	Hydromet   ProviderConfig

	// Redis cache is used when RedisAddr is set; the in-process store
	// otherwise.
	RedisAddr     string
	RedisPassword string

	// Kafka publishing of finished assessments is optional.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaAssessTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	perProviderTimeout, err := parseDuration("PER_PROVIDER_TIMEOUT", "3s")
	if err != nil {
		return nil, err
	}
	globalDeadline, err := parseDuration("GLOBAL_DEADLINE", "10s")
	if err != nil {
		return nil, err
	}
	retryBase, err := parseDuration("RETRY_BASE_DELAY", "200ms")
	if err != nil {
		return nil, err
	}
	retryMax, err := parseInt("RETRY_MAX", 2)
	if err != nil {
		return nil, err
	}

	govIndex, err := loadProvider("GOV_INDEX", providerDefaults{
		weight: 1.0, rateMax: 60, rateWindow: time.Minute, cacheTTL: time.Hour,
	})
	if err != nil {
		return nil, err
	}
	commercial, err := loadProvider("COMMERCIAL_A", providerDefaults{
		weight: 1.0, rateMax: 30, rateWindow: time.Minute, cacheTTL: 30 * time.Minute,
		needsKey: true,
	})
	if err != nil {
		return nil, err
	}
	hydromet, err := loadProvider("HYDROMET", providerDefaults{
		weight: 1.0, rateMax: 120, rateWindow: time.Minute, cacheTTL: 10 * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	kafkaBrokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PerProviderTimeout: perProviderTimeout,
		GlobalDeadline:     globalDeadline,
		RetryMax:           retryMax,
		RetryBaseDelay:     retryBase,

		GovIndex:   govIndex,
		Commercial: commercial,
		Hydromet:   hydromet,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     kafkaBrokers,
		KafkaAssessTopic: envOrDefault("KAFKA_ASSESSMENT_TOPIC", "hazard-risk-assessments"),
	}

	if !cfg.GovIndex.Enabled && !cfg.Commercial.Enabled && !cfg.Hydromet.Enabled {
		return nil, errors.New("at least one provider must be enabled")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaAssessTopic == "" {
		return nil, errors.New("KAFKA_ASSESSMENT_TOPIC is required when Kafka is enabled")
	}

	return cfg, nil
}

// Descriptor builds the domain descriptor for a configured provider.
func (p ProviderConfig) Descriptor(name string, hazards []domain.HazardType) domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		Name:    name,
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey,
		Weight:  p.Weight,
		Rate: domain.RatePolicy{
			MaxRequests: p.RateMax,
			Window:      p.RateWindow,
		},
		DefaultTTL: p.CacheTTL,
		Hazards:    hazards,
	}
}

type providerDefaults struct {
	weight     float64
	rateMax    int
	rateWindow time.Duration
	cacheTTL   time.Duration
	needsKey   bool
}

func loadProvider(prefix string, d providerDefaults) (ProviderConfig, error) {
	var zero ProviderConfig

	baseURL := os.Getenv(prefix + "_BASE_URL")
	enabled := baseURL != ""
	if v := os.Getenv(prefix + "_ENABLED"); v != "" {
		enabled = v == "true"
	}

	weight, err := parseFloat(prefix+"_WEIGHT", d.weight)
	if err != nil {
		return zero, err
	}
	if weight < 0 || weight > 2 {
		return zero, fmt.Errorf("%s_WEIGHT must be between 0 and 2", prefix)
	}
	rateMax, err := parseInt(prefix+"_RATE_MAX", d.rateMax)
	if err != nil {
		return zero, err
	}
	rateWindow, err := parseDuration(prefix+"_RATE_WINDOW", d.rateWindow.String())
	if err != nil {
		return zero, err
	}
	cacheTTL, err := parseDuration(prefix+"_CACHE_TTL", d.cacheTTL.String())
	if err != nil {
		return zero, err
	}
	timeout, err := parseDuration(prefix+"_TIMEOUT", "5s")
	if err != nil {
		return zero, err
	}

	apiKey := os.Getenv(prefix + "_API_KEY")
	if enabled && d.needsKey && apiKey == "" {
		return zero, fmt.Errorf("%s_API_KEY is required when %s is enabled", prefix, prefix)
	}
	if enabled && baseURL == "" {
		return zero, fmt.Errorf("%s_BASE_URL is required when %s is enabled", prefix, prefix)
	}

	return ProviderConfig{
		Enabled:    enabled,
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Weight:     weight,
		RateMax:    rateMax,
		RateWindow: rateWindow,
		CacheTTL:   cacheTTL,
		Timeout:    timeout,
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
