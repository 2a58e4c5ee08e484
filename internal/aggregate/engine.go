// Package aggregate implements the engine core: concurrent fan-out over
// provider clients, normalization, reliability-weighted per-hazard scoring,
// and assembly of the final assessment with its source manifest.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
	"github.com/couchcryptid/hazard-risk-engine/internal/normalize"
	"github.com/couchcryptid/hazard-risk-engine/internal/observability"
	"github.com/couchcryptid/hazard-risk-engine/internal/provider"
)

// Source pairs a provider client with the operation the engine calls on it.
type Source struct {
	Client    provider.Provider
	Operation string
}

// Engine fans out assessment requests across provider clients and combines
// their readings into a PropertyRiskAssessment.
type Engine struct {
	sources        map[string]Source
	table          *normalize.Table
	logger         *slog.Logger
	metrics        *observability.Metrics
	globalDeadline time.Duration
	ready          atomic.Bool
}

// New creates an engine over the given sources. globalDeadline bounds a
// whole assessment when the request doesn't carry its own.
func New(sources []Source, table *normalize.Table, logger *slog.Logger, metrics *observability.Metrics, globalDeadline time.Duration) *Engine {
	m := make(map[string]Source, len(sources))
	for _, s := range sources {
		m[s.Client.Name()] = s
	}
	if globalDeadline <= 0 {
		globalDeadline = 10 * time.Second
	}
	return &Engine{
		sources:        m,
		table:          table,
		logger:         logger,
		metrics:        metrics,
		globalDeadline: globalDeadline,
	}
}

// CheckReadiness returns nil once the engine has produced at least one
// assessment.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("engine has not produced any assessments yet")
	}
	return nil
}

// branchOutcome is the settled terminal state of one provider branch.
type branchOutcome struct {
	provider string
	readings []domain.RawHazardReading
	err      error
}

// Assess produces a point-in-time risk assessment for the requested location,
// hazards, and providers. Individual branch failures never abort the
// assessment; only total absence of data surfaces as ErrNoData.
func (e *Engine) Assess(ctx context.Context, req domain.AssessmentRequest) (*domain.PropertyRiskAssessment, error) {
	if len(req.Hazards) == 0 {
		return nil, fmt.Errorf("no hazard types requested")
	}
	if len(req.Providers) == 0 {
		return nil, fmt.Errorf("no providers requested")
	}

	start := time.Now()

	deadline := req.GlobalDeadline
	if deadline <= 0 {
		deadline = e.globalDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	outcomes := e.fanOut(ctx, req)

	assessment, err := e.combine(req, outcomes)
	if err != nil {
		e.metrics.AssessmentsNoData.Inc()
		return nil, err
	}

	e.ready.Store(true)
	e.metrics.AssessmentsTotal.Inc()
	e.metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
	e.metrics.AssessmentConfidence.Observe(assessment.Confidence)

	e.logger.Info("assessment produced",
		"id", assessment.ID,
		"hazards", len(assessment.Hazards),
		"sources_used", len(assessment.SourcesUsed),
		"sources_failed", len(assessment.SourcesFailed),
		"confidence", assessment.Confidence,
	)
	return assessment, nil
}

// fanOut issues one concurrent fetch per requested provider that supports
// any requested hazard, and waits for every branch to settle. Branches
// capture their own errors; a failure in one never cancels the others.
func (e *Engine) fanOut(ctx context.Context, req domain.AssessmentRequest) []branchOutcome {
	var (
		mu       sync.Mutex
		outcomes []branchOutcome
		g        errgroup.Group
	)

	settle := func(o branchOutcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	for _, name := range req.Providers {
		source, ok := e.sources[name]
		if !ok {
			e.logger.Warn("unknown provider requested", "provider", name)
			settle(branchOutcome{
				provider: name,
				err:      domain.NewProviderError(name, domain.KindInvalidParam, fmt.Errorf("provider not registered")),
			})
			continue
		}
		if !source.Client.Descriptor().Supports(req.Hazards) {
			e.logger.Debug("provider covers none of the requested hazards, skipping",
				"provider", name)
			continue
		}

		g.Go(func() error {
			branchCtx := ctx
			if req.PerProviderTimeout > 0 {
				var cancel context.CancelFunc
				branchCtx, cancel = context.WithTimeout(ctx, req.PerProviderTimeout)
				defer cancel()
			}

			readings, err := source.Client.Fetch(branchCtx, source.Operation, provider.Params{
				Location: req.Location,
				Hazards:  req.Hazards,
			})
			settle(branchOutcome{provider: source.Client.Name(), readings: readings, err: err})
			return nil
		})
	}

	g.Wait() //nolint:errcheck // branches always return nil; errors settle as data
	return outcomes
}

// combine normalizes the settled readings and builds the assessment.
func (e *Engine) combine(req domain.AssessmentRequest, outcomes []branchOutcome) (*domain.PropertyRiskAssessment, error) {
	requested := make(map[domain.HazardType]bool, len(req.Hazards))
	for _, h := range req.Hazards {
		requested[h] = true
	}

	var used, failed, empty []string
	byHazard := make(map[domain.HazardType][]domain.NormalizedHazardScore)

	for _, o := range outcomes {
		if o.err != nil {
			if domain.KindOf(o.err) == domain.KindNoData {
				empty = append(empty, o.provider)
			} else {
				failed = append(failed, o.provider)
			}
			continue
		}

		used = append(used, o.provider)
		for _, reading := range o.readings {
			if !requested[reading.Hazard] {
				continue
			}
			score := e.table.Normalize(reading)
			byHazard[reading.Hazard] = append(byHazard[reading.Hazard], score)
		}
	}

	if len(byHazard) == 0 {
		return nil, fmt.Errorf("no readings from %d attempted providers: %w",
			len(outcomes), domain.ErrNoData)
	}

	hazards := make(map[domain.HazardType]domain.HazardRiskAggregate, len(byHazard))
	var scoreSum float64
	for hazard, scores := range byHazard {
		combined := e.weightedAverage(scores)
		hazards[hazard] = domain.HazardRiskAggregate{
			Hazard:        hazard,
			CombinedScore: combined,
			Level:         domain.LevelForScore(combined),
			Breakdown:     scores,
		}
		scoreSum += combined
	}

	// Overall: each hazard type counts equally, regardless of source count.
	overall := scoreSum / float64(len(hazards))

	attempted := len(outcomes)
	confidence := clamp01(float64(len(used)) / float64(attempted))

	sort.Strings(used)
	sort.Strings(failed)
	sort.Strings(empty)

	return &domain.PropertyRiskAssessment{
		ID:            uuid.NewString(),
		Location:      req.Location,
		OverallScore:  overall,
		OverallLevel:  domain.LevelForScore(overall),
		Hazards:       hazards,
		SourcesUsed:   used,
		SourcesFailed: failed,
		SourcesEmpty:  empty,
		Confidence:    confidence,
		GeneratedAt:   domain.Now(),
	}, nil
}

// weightedAverage combines normalized scores using each provider's static
// reliability weight. With a single input the result is that input's score.
// When every contributing weight is 0 the weights carry no information, so
// the scores fall back to a plain arithmetic mean.
func (e *Engine) weightedAverage(scores []domain.NormalizedHazardScore) float64 {
	var weightedSum, weightSum float64
	for _, s := range scores {
		weight := 1.0
		if source, ok := e.sources[s.Provider]; ok {
			weight = source.Client.Descriptor().Weight
		}
		weightedSum += s.Score * weight
		weightSum += weight
	}
	if weightSum == 0 {
		var sum float64
		for _, s := range scores {
			sum += s.Score
		}
		return sum / float64(len(scores))
	}
	return weightedSum / weightSum
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
