// Package provider defines the uniform contract for external hazard data
// sources and the shared control flow every provider call goes through:
// cache check, rate-limit admission, circuit breaker, bounded retries with
// exponential backoff, write-through caching, and health recording.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/hazard-risk-engine/internal/cache"
	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/health"
	"github.com/couchcryptid/hazard-risk-engine/internal/observability"
	"github.com/couchcryptid/hazard-risk-engine/internal/ratelimit"
)

// Params carries one fetch's inputs.
type Params struct {
	Location domain.Coordinate
	Hazards  []domain.HazardType

	// FailFast rejects immediately when no rate-limit token is free instead
	// of waiting within the context deadline. Bulk callers set this and
	// reschedule; interactive lookups leave it unset and wait briefly.
	FailFast bool
}

// Provider is the uniform contract the aggregation engine fans out over.
type Provider interface {
	Name() string
	Descriptor() domain.ProviderDescriptor
	Fetch(ctx context.Context, operation string, params Params) ([]domain.RawHazardReading, error)
}

// Remote is the per-provider piece: one remote call, native response parsing,
// typed error classification. Everything else is shared in Client.
type Remote interface {
	Call(ctx context.Context, operation string, params Params) ([]domain.RawHazardReading, error)
}

// RetryPolicy bounds the transient-error retry loop.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy retries twice, starting at 200ms and capping at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second}
}

// Client wraps a Remote with the shared resilience control flow.
type Client struct {
	desc        domain.ProviderDescriptor
	remote      Remote
	limiter     *ratelimit.Limiter
	store       cache.Store
	monitor     *health.Monitor
	breaker     *gobreaker.CircuitBreaker
	metrics     *observability.Metrics
	logger      *slog.Logger
	retry       RetryPolicy
	callTimeout time.Duration
}

// Deps bundles the shared components every client needs.
type Deps struct {
	Limiter     *ratelimit.Limiter
	Store       cache.Store
	Monitor     *health.Monitor
	Metrics     *observability.Metrics
	Logger      *slog.Logger
	Retry       RetryPolicy
	CallTimeout time.Duration
}

// NewClient builds a client for desc around the given remote.
func NewClient(desc domain.ProviderDescriptor, remote Remote, deps Deps) *Client {
	if deps.Retry.InitialBackoff <= 0 {
		deps.Retry = DefaultRetryPolicy()
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = 5 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    desc.Name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		desc:        desc,
		remote:      remote,
		limiter:     deps.Limiter,
		store:       deps.Store,
		monitor:     deps.Monitor,
		breaker:     breaker,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With("provider", desc.Name),
		retry:       deps.Retry,
		callTimeout: deps.CallTimeout,
	}
}

func (c *Client) Name() string                          { return c.desc.Name }
func (c *Client) Descriptor() domain.ProviderDescriptor { return c.desc }

// Fetch runs the shared per-call sequence: cache, admission, remote call
// with retries, write-through, health recording. Terminal failures are
// always *domain.ProviderError values.
func (c *Client) Fetch(ctx context.Context, operation string, params Params) ([]domain.RawHazardReading, error) {
	key := cacheKey(c.desc.Name, operation, params)

	if readings, ok := c.cachedReadings(ctx, key); ok {
		c.metrics.CacheLookups.WithLabelValues(c.desc.Name, "hit").Inc()
		return readings, nil
	}
	c.metrics.CacheLookups.WithLabelValues(c.desc.Name, "miss").Inc()

	if err := c.admit(ctx, params); err != nil {
		c.metrics.RateLimitRejections.WithLabelValues(c.desc.Name).Inc()
		c.monitor.RecordFailure(c.desc.Name, domain.KindRateLimited, 0, err.Error())
		return nil, err
	}

	readings, err := c.fetchWithRetries(ctx, operation, params)
	if err != nil {
		return nil, err
	}

	c.writeThrough(ctx, key, operation, readings)
	return readings, nil
}

func (c *Client) admit(ctx context.Context, params Params) error {
	if params.FailFast {
		return c.limiter.TryAcquire(c.desc.Name)
	}
	return c.limiter.Acquire(ctx, c.desc.Name)
}

func (c *Client) fetchWithRetries(ctx context.Context, operation string, params Params) ([]domain.RawHazardReading, error) {
	backoff := c.retry.InitialBackoff

	for attempt := 0; ; attempt++ {
		start := time.Now()
		readings, err := c.callOnce(ctx, operation, params)
		latency := time.Since(start)

		if err == nil {
			if len(readings) == 0 {
				// The provider answered but had nothing for this location:
				// no contribution, not a failure.
				c.monitor.RecordSuccess(c.desc.Name, latency)
				c.metrics.ProviderRequests.WithLabelValues(c.desc.Name, "no_data").Inc()
				return nil, domain.NewProviderError(c.desc.Name, domain.KindNoData, nil)
			}
			c.monitor.RecordSuccess(c.desc.Name, latency)
			return readings, nil
		}

		kind := c.classify(ctx, err)

		retryable := kind.Transient() &&
			attempt < c.retry.MaxRetries &&
			ctx.Err() == nil &&
			!errors.Is(err, gobreaker.ErrOpenState) &&
			!errors.Is(err, gobreaker.ErrTooManyRequests)
		if !retryable {
			if kind == domain.KindNoData {
				// A "nothing here" answer is a healthy round trip.
				c.monitor.RecordSuccess(c.desc.Name, latency)
				c.metrics.ProviderRequests.WithLabelValues(c.desc.Name, "no_data").Inc()
				return nil, domain.NewProviderError(c.desc.Name, domain.KindNoData, err)
			}
			c.monitor.RecordFailure(c.desc.Name, kind, latency, err.Error())
			c.logger.Warn("fetch failed", "operation", operation, "kind", kind, "attempts", attempt+1, "error", err)
			var pe *domain.ProviderError
			if errors.As(err, &pe) && pe.Kind == kind {
				return nil, err
			}
			return nil, domain.NewProviderError(c.desc.Name, kind, err)
		}

		c.logger.Debug("transient fetch error, backing off",
			"operation", operation, "attempt", attempt+1, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			c.monitor.RecordFailure(c.desc.Name, domain.KindTimeout, latency, ctx.Err().Error())
			return nil, domain.NewProviderError(c.desc.Name, domain.KindTimeout, ctx.Err())
		}
		backoff = nextBackoff(backoff, c.retry.MaxBackoff)
	}
}

// callOnce performs a single remote call through the circuit breaker with a
// bounded per-call timeout.
func (c *Client) callOnce(ctx context.Context, operation string, params Params) ([]domain.RawHazardReading, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		return c.remote.Call(callCtx, operation, params)
	})
	if err != nil {
		return nil, err
	}
	readings, ok := result.([]domain.RawHazardReading)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return readings, nil
}

// classify resolves an error to its kind, distinguishing the branch's own
// deadline (terminal timeout) from a single slow call (transient network).
func (c *Client) classify(ctx context.Context, err error) domain.ErrorKind {
	if ctx.Err() != nil {
		return domain.KindTimeout
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Per-call timeout with the branch still live: worth retrying.
		return domain.KindNetwork
	}
	return domain.KindNetwork
}

func (c *Client) cachedReadings(ctx context.Context, key string) ([]domain.RawHazardReading, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var readings []domain.RawHazardReading
	if err := json.Unmarshal(data, &readings); err != nil {
		c.logger.Warn("cache entry corrupt, treating as miss", "error", err)
		return nil, false
	}
	return readings, true
}

func (c *Client) writeThrough(ctx context.Context, key, operation string, readings []domain.RawHazardReading) {
	data, err := json.Marshal(readings)
	if err != nil {
		c.logger.Warn("cache marshal failed", "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.desc.TTLFor(operation)); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
}

func cacheKey(provider, operation string, params Params) string {
	extra := make([]string, len(params.Hazards))
	for i, h := range params.Hazards {
		extra[i] = string(h)
	}
	return cache.Key(provider, operation, params.Location, extra...)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
