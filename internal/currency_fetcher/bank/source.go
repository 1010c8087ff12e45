package bank

import (
	"context"
	"github.com/langowen/oxrbank/internal/entities"
)

type RateSource interface {
	Fetch(ctx context.Context, req entities.Request) ([]byte, error)
}

// Currencies reports whether a currency code is known to the host library.
type Currencies interface {
	IsKnown(code string) bool
}
