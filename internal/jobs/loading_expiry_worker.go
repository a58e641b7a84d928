package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/healthbridge/go-medscheme/internal/core"
)

const loadingExpiryBatchSize = 50

// LoadingExpiryWorker retires time-limited medical loadings that have run
// past their end date and re-rates the affected policies, so members stop
// paying surcharges the underwriting terms no longer require.
type LoadingExpiryWorker struct {
	BaseWorker
	policies core.PolicyService
}

func NewLoadingExpiryWorker(policies core.PolicyService, interval time.Duration, log *slog.Logger) *LoadingExpiryWorker {
	return &LoadingExpiryWorker{
		BaseWorker: NewBaseWorker("loading_expiry", interval, log),
		policies:   policies,
	}
}

func (w *LoadingExpiryWorker) Name() string { return w.name }

func (w *LoadingExpiryWorker) Start(ctx context.Context) {
	w.Poll(ctx, w.run)
}

func (w *LoadingExpiryWorker) run(ctx context.Context) error {
	updated, err := w.policies.ExpireLoadings(ctx, loadingExpiryBatchSize)
	if err != nil {
		return err
	}
	if updated > 0 {
		w.log.Info("re-rated policies with expired loadings", "count", updated)
	}
	return nil
}
