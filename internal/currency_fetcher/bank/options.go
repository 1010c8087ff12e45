package bank

import (
	"github.com/langowen/oxrbank/internal/currency_fetcher/cache"
	"github.com/langowen/oxrbank/internal/entities"
	"log/slog"
	"time"
)

type Option func(b *Bank)

func WithCache(loc cache.Location) Option {
	return func(b *Bank) {
		b.cacheLoc = loc
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(b *Bank) {
		b.ttl = ttl
	}
}

func WithAppID(appID string) Option {
	return func(b *Bank) {
		b.appID = appID
	}
}

// WithSource sets the source currency. Unknown codes fall back to USD.
func WithSource(code string) Option {
	return func(b *Bank) {
		b.sourceCode = code
	}
}

// WithDate switches the bank to historical rates for the given day.
func WithDate(date time.Time) Option {
	return func(b *Bank) {
		b.date = date
	}
}

func WithBidAsk(on bool) Option {
	return func(b *Bank) {
		b.bidAsk = on
	}
}

// WithForceRefresh makes an expired bank always go to the network instead of
// reading through the cache first.
func WithForceRefresh(on bool) Option {
	return func(b *Bank) {
		b.forceRefresh = on
	}
}

func WithSymbols(symbols ...string) Option {
	return func(b *Bank) {
		b.symbols = append([]string(nil), symbols...)
	}
}

func WithShowAlternative(on bool) Option {
	return func(b *Bank) {
		b.showAlternative = on
	}
}

func WithPrettyPrint(on bool) Option {
	return func(b *Bank) {
		b.prettyPrint = on
	}
}

func WithCurrencies(c Currencies) Option {
	return func(b *Bank) {
		b.currencies = c
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(b *Bank) {
		b.log = log
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bank) {
		b.now = now
	}
}

type lookupOptions struct {
	rateType entities.RateType
}

type LookupOption func(o *lookupOptions)

// WithRateType asks GetRate for a bid or ask rate instead of the mid rate.
func WithRateType(t entities.RateType) LookupOption {
	return func(o *lookupOptions) {
		o.rateType = t
	}
}
