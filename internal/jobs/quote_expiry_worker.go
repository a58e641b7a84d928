package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/healthbridge/go-medscheme/internal/core"
)

const quoteExpiryBatchSize = 50

// QuoteExpiryWorker sweeps applications whose quote or offer validity
// window has passed and flips them to expired.
type QuoteExpiryWorker struct {
	BaseWorker
	apps core.ApplicationService
}

func NewQuoteExpiryWorker(apps core.ApplicationService, interval time.Duration, log *slog.Logger) *QuoteExpiryWorker {
	return &QuoteExpiryWorker{
		BaseWorker: NewBaseWorker("quote_expiry", interval, log),
		apps:       apps,
	}
}

func (w *QuoteExpiryWorker) Name() string { return w.name }

func (w *QuoteExpiryWorker) Start(ctx context.Context) {
	w.Poll(ctx, w.run)
}

func (w *QuoteExpiryWorker) run(ctx context.Context) error {
	expired, err := w.apps.ExpireQuotes(ctx, quoteExpiryBatchSize)
	if err != nil {
		return err
	}
	if expired > 0 {
		w.log.Info("expired stale quotes", "count", expired)
	}
	return nil
}
