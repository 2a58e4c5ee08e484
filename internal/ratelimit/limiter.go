// Package ratelimit provides per-provider sliding-window admission control.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
)

// Limiter admits provider calls against each provider's rate policy using a
// sliding window over a timestamp ledger: tokens available = maxRequests
// minus calls recorded within the last window. Each provider has its own
// ledger and lock, so unrelated providers never serialize on each other.
type Limiter struct {
	clock   clockwork.Clock
	mu      sync.RWMutex
	ledgers map[string]*ledger
}

type ledger struct {
	mu     sync.Mutex
	policy domain.RatePolicy
	stamps []time.Time
}

// NewLimiter creates a limiter for the given per-provider policies.
// A nil clock selects the real clock.
func NewLimiter(policies map[string]domain.RatePolicy, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ledgers := make(map[string]*ledger, len(policies))
	for name, policy := range policies {
		ledgers[name] = &ledger{policy: policy}
	}
	return &Limiter{clock: clock, ledgers: ledgers}
}

// TryAcquire takes a token without waiting. Returns a rate_limited
// ProviderError when the window is full.
func (l *Limiter) TryAcquire(provider string) error {
	led := l.ledger(provider)
	if led == nil {
		return nil
	}
	if ok, _ := led.take(l.clock.Now()); !ok {
		return domain.NewProviderError(provider, domain.KindRateLimited, nil)
	}
	return nil
}

// Acquire takes a token, waiting until one frees up or ctx expires. The wait
// budget is whatever deadline the caller attached to ctx.
func (l *Limiter) Acquire(ctx context.Context, provider string) error {
	led := l.ledger(provider)
	if led == nil {
		return nil
	}

	for {
		ok, retryIn := led.take(l.clock.Now())
		if ok {
			return nil
		}

		timer := l.clock.NewTimer(retryIn)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.NewProviderError(provider, domain.KindRateLimited, ctx.Err())
		case <-timer.Chan():
		}
	}
}

// ledger returns the provider's ledger, or nil for providers without a
// configured policy (those are admitted unconditionally).
func (l *Limiter) ledger(provider string) *ledger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ledgers[provider]
}

// take records a timestamp if a token is available. When the window is full
// it returns the duration until the oldest recorded call slides out.
func (led *ledger) take(now time.Time) (bool, time.Duration) {
	led.mu.Lock()
	defer led.mu.Unlock()

	cutoff := now.Add(-led.policy.Window)
	kept := led.stamps[:0]
	for _, ts := range led.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	led.stamps = kept

	if len(led.stamps) < led.policy.MaxRequests {
		led.stamps = append(led.stamps, now)
		return true, 0
	}

	retryIn := led.stamps[0].Add(led.policy.Window).Sub(now)
	if retryIn <= 0 {
		retryIn = time.Millisecond
	}
	return false, retryIn
}
