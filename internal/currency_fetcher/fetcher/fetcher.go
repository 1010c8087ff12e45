// Package fetcher runs the background job that keeps the shared rates cache
// warm.
package fetcher

import (
	"context"
	"github.com/langowen/oxrbank/internal/metrics"
	"github.com/pkg/errors"
	"log/slog"
	"time"
)

type Fetcher struct {
	bank     Bank
	redis    RedisStorage
	metrics  *metrics.Metrics
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewFetcher builds the job. redis and m may be nil: without redis no update
// notification is published.
func NewFetcher(bank Bank, redis RedisStorage, m *metrics.Metrics, interval, timeout time.Duration) *Fetcher {
	return &Fetcher{
		bank:     bank,
		redis:    redis,
		metrics:  m,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// StartFetcher saves a fresh document right away and then once per interval
// until ctx is done. Failed runs are logged and retried on the next tick.
func (f *Fetcher) StartFetcher(ctx context.Context) error {
	const op = "fetcher.StartFetcher"

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	if err := f.saveRates(ctx); err != nil {
		slog.Error("Failed to save rates", "op", op, "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := f.saveRates(ctx); err != nil {
				slog.Error("Failed to save rates", "op", op, "error", err)
			}

		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), op)
		}
	}
}

func (f *Fetcher) saveRates(ctx context.Context) error {
	const op = "fetcher.saveRates"

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	err := f.bank.SaveRates(ctx)
	if f.metrics != nil {
		f.metrics.DocumentsSavedTotal.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		return errors.Wrap(err, op)
	}

	slog.Debug("Rates document saved")

	if f.redis == nil {
		return nil
	}

	if err := f.redis.PublishUpd(ctx, f.now().Unix()); err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}
