package app

import (
	"context"

	"github.com/beasroy/shopify-SAAS-sub001/pkg/observability/logger"
)

// MetricsService rolls up the previous day's store metrics.
type MetricsService interface {
	RollupDaily(ctx context.Context) error
}

// DigestService sends the daily summary emails.
type DigestService interface {
	SendDigests(ctx context.Context) error
}

// AdsService refreshes the competitor ads snapshots.
type AdsService interface {
	RefreshCompetitorAds(ctx context.Context) error
}

// The default collaborators only log; real implementations are injected
// by the embedding process.

type loggingMetricsService struct{ log logger.Logger }

func (s loggingMetricsService) RollupDaily(ctx context.Context) error {
	s.log.WithContext(ctx).Info("metrics rollup requested, no metrics service configured")
	return nil
}

type loggingDigestService struct{ log logger.Logger }

func (s loggingDigestService) SendDigests(ctx context.Context) error {
	s.log.WithContext(ctx).Info("email digest requested, no digest service configured")
	return nil
}

type loggingAdsService struct{ log logger.Logger }

func (s loggingAdsService) RefreshCompetitorAds(ctx context.Context) error {
	s.log.WithContext(ctx).Info("competitor ads refresh requested, no ads service configured")
	return nil
}
