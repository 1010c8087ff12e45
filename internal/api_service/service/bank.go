package service

import (
	"context"
	"github.com/langowen/oxrbank/internal/currency_fetcher/bank"
	"github.com/langowen/oxrbank/internal/entities"
	"time"
)

type Bank interface {
	GetRate(ctx context.Context, from, to string, opts ...bank.LookupOption) (float64, error)
	UpdateRates(ctx context.Context) error
	RefreshRates(ctx context.Context) error
	ExpireRates(ctx context.Context) error
	Rates() []entities.Rate
	RatesTimestamp() time.Time
	RatesExpiration() time.Time
}
