// Package setup builds a rate bank and its cache backend from config. Both
// binaries share it.
package setup

import (
	"context"
	"fmt"
	"github.com/langowen/oxrbank/deploy/config"
	"github.com/langowen/oxrbank/internal/currency_fetcher/adapter/api_client/open_exchange_rates"
	"github.com/langowen/oxrbank/internal/currency_fetcher/adapter/currencies"
	"github.com/langowen/oxrbank/internal/currency_fetcher/adapter/storage/postgres"
	"github.com/langowen/oxrbank/internal/currency_fetcher/adapter/storage/redis"
	"github.com/langowen/oxrbank/internal/currency_fetcher/bank"
	"github.com/langowen/oxrbank/internal/currency_fetcher/cache"
	"github.com/pkg/errors"
	redisPack "github.com/redis/go-redis/v9"
	"log/slog"
	"net/http"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

type Dependencies struct {
	Bank *bank.Bank

	// Redis is set only for the redis cache backend.
	Redis    *redis.Storage
	Postgres *postgres.Storage
}

func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
	}
	if d.Postgres != nil {
		d.Postgres.Close()
	}
}

func NewBank(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	const op = "setup.NewBank"

	client, err := open_exchange_rates.New(cfg.Fetcher.URL,
		open_exchange_rates.WithHTTPClient(&http.Client{Timeout: cfg.Fetcher.Timeout}),
		open_exchange_rates.WithRateLimit(cfg.Fetcher.RPS, cfg.Fetcher.Burst),
		open_exchange_rates.WithRetries(cfg.Fetcher.Retries, cfg.Fetcher.RetryBackoff),
	)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	deps := &Dependencies{}

	loc, err := deps.initCache(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, errors.Wrap(err, op)
	}

	date, err := cfg.Fetcher.ParseDate()
	if err != nil {
		deps.Close()
		return nil, errors.Wrap(err, op)
	}

	b, err := bank.New(client,
		bank.WithCache(loc),
		bank.WithAppID(cfg.Fetcher.AppID),
		bank.WithCurrencies(currencies.NewISO()),
		bank.WithSource(cfg.Fetcher.Source),
		bank.WithSymbols(cfg.Split("Symbols")...),
		bank.WithDate(date),
		bank.WithTTL(cfg.Fetcher.TTL),
		bank.WithForceRefresh(cfg.Fetcher.ForceRefresh),
		bank.WithBidAsk(cfg.Fetcher.BidAsk),
		bank.WithShowAlternative(cfg.Fetcher.ShowAlternative),
		bank.WithPrettyPrint(cfg.Fetcher.PrettyPrint),
	)
	if err != nil {
		deps.Close()
		return nil, errors.Wrap(err, op)
	}
	deps.Bank = b

	return deps, nil
}

func (d *Dependencies) initCache(ctx context.Context, cfg *config.Config) (cache.Location, error) {
	switch cfg.Cache.Backend {
	case BackendFile, "":
		return cache.Path(cfg.Cache.Path), nil

	case BackendRedis:
		options := &redisPack.Options{
			Addr:     cfg.Redis.Host,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		rdStorage, err := redis.InitStorage(ctx, options, cfg.Cache.Key)
		if err != nil {
			return nil, err
		}
		d.Redis = rdStorage
		slog.Info("Redis cache initialized", "key", cfg.Cache.Key)

		return rdStorage.Location(), nil

	case BackendPostgres:
		pgStorage, err := postgres.InitStorage(ctx, cfg.Storage.DSN(), cfg.Cache.Key)
		if err != nil {
			return nil, err
		}
		d.Postgres = pgStorage
		slog.Info("Postgres cache initialized", "name", cfg.Cache.Key)

		return pgStorage.Location(), nil

	case BackendNone:
		return nil, nil
	}

	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}
