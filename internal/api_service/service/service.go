// Package service serialises access to the rate bank for the HTTP API.
package service

import (
	"context"
	"github.com/langowen/oxrbank/internal/currency_fetcher/bank"
	"github.com/langowen/oxrbank/internal/entities"
	"github.com/langowen/oxrbank/internal/metrics"
	"github.com/pkg/errors"
	"log/slog"
	"sync"
	"time"
)

const listenTimeout = 30 * time.Second

// Service guards one bank with a mutex. Every call holds the lock for the
// whole lookup or reload, so readers never see the store half rebuilt.
type Service struct {
	mu      sync.Mutex
	bank    Bank
	redis   RedisStorage
	metrics *metrics.Metrics
}

// NewService wraps b. redis may be nil, in which case WatchUpdates returns at
// once.
func NewService(b Bank, redis RedisStorage, m *metrics.Metrics) (*Service, error) {
	if b == nil {
		return nil, errors.New("service.NewService: nil bank")
	}

	return &Service{
		bank:    b,
		redis:   redis,
		metrics: m,
	}, nil
}

func (s *Service) FetchRate(ctx context.Context, from, to string, rateType entities.RateType) (*entities.Quote, error) {
	const op = "service.FetchRate"

	s.mu.Lock()
	rate, err := s.bank.GetRate(ctx, from, to, bank.WithRateType(rateType))
	s.mu.Unlock()

	s.recordLookup(rateType, err)

	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return &entities.Quote{
		From:  from,
		To:    to,
		Type:  rateType,
		Value: rate,
	}, nil
}

func (s *Service) FetchAllRates(ctx context.Context) (*entities.RatesSnapshot, error) {
	const op = "service.FetchAllRates"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.bank.ExpireRates(ctx); err != nil {
		return nil, errors.Wrap(err, op)
	}

	return &entities.RatesSnapshot{
		Timestamp: s.bank.RatesTimestamp(),
		ExpiresAt: s.bank.RatesExpiration(),
		Rates:     s.bank.Rates(),
	}, nil
}

// Refresh reloads the rates from the network, bypassing the cache.
func (s *Service) Refresh(ctx context.Context) (*entities.RatesSnapshot, error) {
	const op = "service.Refresh"

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.bank.RefreshRates(ctx)
	s.recordRefresh(metrics.TriggerManual, err)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return &entities.RatesSnapshot{
		Timestamp: s.bank.RatesTimestamp(),
		ExpiresAt: s.bank.RatesExpiration(),
		Rates:     s.bank.Rates(),
	}, nil
}

// Load reads the rates through the cache. It is called once at startup.
func (s *Service) Load(ctx context.Context) error {
	return s.update(ctx, metrics.TriggerStartup)
}

// WatchUpdates reloads the rates each time the fetcher announces a new
// document, until ctx is done.
func (s *Service) WatchUpdates(ctx context.Context) {
	const op = "service.WatchUpdates"

	if s.redis == nil {
		return
	}

	for {
		if ctx.Err() != nil {
			slog.Info("Stopped watching rate updates", "op", op)
			return
		}

		listenCtx, cancel := context.WithTimeout(ctx, listenTimeout)
		payload, err := s.redis.ListenUpd(listenCtx)
		cancel()

		switch {
		case errors.Is(err, entities.ErrRedisTimeout):
			continue
		case errors.Is(err, entities.ErrRedisCanceled):
			if ctx.Err() != nil {
				continue
			}
			slog.Error("Redis subscription lost", "op", op, "error", err)
			wait(ctx, time.Second)
			continue
		case err != nil:
			slog.Error("Failed to receive rate update", "op", op, "error", err)
			wait(ctx, time.Second)
			continue
		}

		slog.Debug("Rates updated by fetcher", "timestamp", payload)

		if err := s.update(ctx, metrics.TriggerNotify); err != nil {
			slog.Error("Failed to reload rates", "op", op, "error", err)
		}
	}
}

func (s *Service) update(ctx context.Context, trigger string) error {
	const op = "service.update"

	s.mu.Lock()
	err := s.bank.UpdateRates(ctx)
	s.mu.Unlock()

	s.recordRefresh(trigger, err)
	if err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

func (s *Service) recordLookup(rateType entities.RateType, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.Result(err)
	if errors.Is(err, entities.ErrNoRate) {
		result = metrics.ResultNoRate
	}
	s.metrics.RateLookupsTotal.WithLabelValues(rateType.String(), result).Inc()
}

func (s *Service) recordRefresh(trigger string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RateRefreshesTotal.WithLabelValues(trigger, metrics.Result(err)).Inc()
}

func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
