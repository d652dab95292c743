// Package quota enforces per-tenant calculation quotas.
//
// Counts live in the cache layer keyed by calendar month, so quotas
// are shared across instances on the Pro tier (Redis) and process-local
// on Community (LRU). A quota of zero disables enforcement.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Counter is the subset of the cache interface quota tracking needs.
type Counter interface {
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)
}

// ErrQuotaExceeded is returned when a tenant is over its monthly limit.
var ErrQuotaExceeded = fmt.Errorf("monthly calculation quota exceeded")

// Tracker enforces monthly calculation quotas per tenant.
type Tracker struct {
	counter      Counter
	monthlyQuota int
}

// NewTracker creates a quota tracker. monthlyQuota <= 0 disables it.
func NewTracker(counter Counter, monthlyQuota int) *Tracker {
	return &Tracker{
		counter:      counter,
		monthlyQuota: monthlyQuota,
	}
}

// Allow records one calculation for the tenant and reports whether it
// is within quota. Counter failures allow the request; quota is a soft
// limit and must not take the engine down with the cache.
func (t *Tracker) Allow(ctx context.Context, tenantID string) error {
	if t.monthlyQuota <= 0 {
		return nil
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("quota:%s", now.Format("2006-01"))
	window := monthRemaining(now)

	count, err := t.counter.IncrementCounter(ctx, tenantID, key, window)
	if err != nil {
		slog.Warn("quota counter unavailable, allowing request",
			"tenant_id", tenantID,
			"error", err,
		)
		return nil
	}

	if count > int64(t.monthlyQuota) {
		return fmt.Errorf("%w: %d of %d used", ErrQuotaExceeded, count, t.monthlyQuota)
	}
	return nil
}

// Remaining returns how many calculations the tenant has left this
// month. It consumes one increment to observe the count.
func (t *Tracker) Remaining(ctx context.Context, tenantID string) (int, error) {
	if t.monthlyQuota <= 0 {
		return -1, nil
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("quota:%s", now.Format("2006-01"))

	count, err := t.counter.IncrementCounter(ctx, tenantID, key, monthRemaining(now))
	if err != nil {
		return 0, err
	}

	left := t.monthlyQuota - int(count)
	if left < 0 {
		left = 0
	}
	return left, nil
}

// monthRemaining returns the duration until the start of next month.
func monthRemaining(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return next.Sub(now)
}
