// Package fallback tries an ordered list of interchangeable candidates until
// one yields an acceptable result. Attempts are strictly sequential: each
// candidate has a cost (quota, money), so the policy is cheapest-first, stop
// on first good-enough.
package fallback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/observability"
)

// Result is a candidate's answer plus its self-reported quality, 0.0–1.0.
type Result[T any] struct {
	Value   T
	Quality float64
}

// Candidate is one interchangeable way to satisfy the request.
type Candidate[T any] struct {
	Name string
	Run  func(ctx context.Context) (Result[T], error)
}

// Executor resolves a candidate chain against a minimum-quality floor.
type Executor[T any] struct {
	qualityFloor float64
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewExecutor creates an executor accepting results with Quality >= floor.
func NewExecutor[T any](qualityFloor float64, logger *slog.Logger, metrics *observability.Metrics) *Executor[T] {
	return &Executor[T]{qualityFloor: qualityFloor, logger: logger, metrics: metrics}
}

// Resolve tries candidates in priority order and returns the first result
// meeting the quality floor. Errors and sub-threshold results are logged and
// skipped; an exhausted chain returns ErrNoData.
func (e *Executor[T]) Resolve(ctx context.Context, candidates []Candidate[T]) (Result[T], error) {
	var zero Result[T]

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return zero, fmt.Errorf("fallback chain aborted: %w", ctx.Err())
		}

		result, err := candidate.Run(ctx)
		if err != nil {
			e.metrics.FallbackAttempts.WithLabelValues(candidate.Name, "error").Inc()
			e.logger.Warn("fallback candidate failed, trying next",
				"candidate", candidate.Name, "error", err)
			continue
		}
		if result.Quality < e.qualityFloor {
			e.metrics.FallbackAttempts.WithLabelValues(candidate.Name, "rejected").Inc()
			e.logger.Debug("fallback candidate below quality floor, trying next",
				"candidate", candidate.Name, "quality", result.Quality, "floor", e.qualityFloor)
			continue
		}

		e.metrics.FallbackAttempts.WithLabelValues(candidate.Name, "accepted").Inc()
		return result, nil
	}

	return zero, fmt.Errorf("all %d fallback candidates exhausted: %w", len(candidates), domain.ErrNoData)
}
