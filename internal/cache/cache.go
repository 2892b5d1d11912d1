// Package cache provides a small cache for the sales overview report,
// which is the only aggregate expensive enough to be worth memoizing.
package cache

import (
	"context"
	"time"

	"salepoint/backend/internal/domain"
)

// ReportCache stores the overview snapshot. Get returns (nil, nil) on a
// miss so callers fall through to a recompute.
type ReportCache interface {
	GetOverview(ctx context.Context, key string) (*domain.SalesOverview, error)
	SetOverview(ctx context.Context, key string, overview *domain.SalesOverview, ttl time.Duration) error
	Close() error
}

// NoopReportCache never hits. It is the default when redis is not
// configured.
type NoopReportCache struct{}

func (NoopReportCache) GetOverview(context.Context, string) (*domain.SalesOverview, error) {
	return nil, nil
}

func (NoopReportCache) SetOverview(context.Context, string, *domain.SalesOverview, time.Duration) error {
	return nil
}

func (NoopReportCache) Close() error { return nil }
