// Package cache provides the engine's bounded response cache: a key/value
// store with per-entry TTL, keyed by provider, operation, and a rounded
// location grid cell.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-risk-engine/internal/domain"
)

// Store is the cache contract. An entry past its TTL behaves exactly like a
// miss; there are no cross-key invariants.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key builds a cache key from provider, operation, location, and any
// operation-specific parameters. Coordinates are rounded to a ~100m grid so
// nearby requests share an entry — a deliberate accuracy/cost tradeoff.
func Key(provider, operation string, loc domain.Coordinate, params ...string) string {
	parts := make([]string, 0, 3+len(params))
	parts = append(parts, provider, operation, fmt.Sprintf("%.3f,%.3f", loc.Lat, loc.Lon))
	parts = append(parts, params...)
	return strings.Join(parts, "|")
}
