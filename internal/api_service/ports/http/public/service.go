package public

import (
	"context"
	"github.com/langowen/oxrbank/internal/entities"
)

type Service interface {
	FetchRate(ctx context.Context, from, to string, rateType entities.RateType) (*entities.Quote, error)
	FetchAllRates(ctx context.Context) (*entities.RatesSnapshot, error)
	Refresh(ctx context.Context) (*entities.RatesSnapshot, error)
}
