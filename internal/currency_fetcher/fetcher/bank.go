package fetcher

import "context"

type Bank interface {
	SaveRates(ctx context.Context) error
}
