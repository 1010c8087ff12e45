// Package bank keeps exchange rates relative to one source currency, derives
// any other pair from them and reloads them when their TTL runs out.
//
// A Bank is not safe for concurrent use. Callers sharing one across goroutines
// must hold a single lock around every call, because a reload clears the
// store before repopulating it.
package bank

import (
	"context"
	"github.com/langowen/oxrbank/internal/currency_fetcher/cache"
	"github.com/langowen/oxrbank/internal/currency_fetcher/document"
	"github.com/langowen/oxrbank/internal/currency_fetcher/store"
	"github.com/langowen/oxrbank/internal/entities"
	"github.com/pkg/errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

type Bank struct {
	source     RateSource
	store      *store.Store
	cache      *cache.Channel
	cacheLoc   cache.Location
	currencies Currencies
	log        *slog.Logger
	now        func() time.Time

	appID           string
	sourceCode      string
	date            time.Time
	symbols         []string
	bidAsk          bool
	forceRefresh    bool
	showAlternative bool
	prettyPrint     bool

	ttl       time.Duration
	expiresAt time.Time
	doc       *entities.RatesDocument
}

func New(source RateSource, opts ...Option) (*Bank, error) {
	const op = "bank.New"

	if source == nil {
		return nil, errors.New(op + ": nil rate source")
	}

	b := &Bank{
		source:      source,
		store:       store.New(),
		log:         slog.Default(),
		now:         time.Now,
		prettyPrint: true,
	}

	for _, opt := range opts {
		opt(b)
	}

	ch, err := cache.New(b.cacheLoc)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	b.cache = ch

	b.SetSource(b.sourceCode)
	b.resetExpiry()

	return b, nil
}

// UpdateRates loads the rates from the cache, or from the network when the
// cache is empty or holds an invalid document. A fetched document that
// validates is written back to the cache. An invalid fetched document is
// dropped and the current rates stay in place.
func (b *Bank) UpdateRates(ctx context.Context) error {
	const op = "bank.UpdateRates"

	if b.cache.Configured() {
		text, ok, err := b.cache.ReadCached(ctx)
		switch {
		case err != nil:
			b.log.Warn("failed to read rates cache", "op", op, "error", err)
		case ok:
			doc, err := b.validate([]byte(text))
			if err == nil {
				b.apply(doc)
				b.log.Debug("rates loaded from cache", "timestamp", doc.Timestamp, "rates", len(doc.Rates))
				return nil
			}
			b.log.Warn("cached rates document is invalid, fetching", "op", op, "error", err)
		}
	}

	raw, err := b.fetch(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}

	doc, err := b.validate(raw)
	if err != nil {
		b.log.Warn("fetched rates document rejected", "op", op, "error", err)
		return nil
	}

	if b.cache.Configured() {
		if err := b.cache.WriteCache(ctx, string(raw)); err != nil {
			b.log.Warn("failed to write rates cache", "op", op, "error", err)
		}
	}

	b.apply(doc)
	b.log.Debug("rates loaded from network", "timestamp", doc.Timestamp, "rates", len(doc.Rates))

	return nil
}

// SaveRates fetches a document and stores it in the cache without touching
// the loaded rates.
func (b *Bank) SaveRates(ctx context.Context) error {
	const op = "bank.SaveRates"

	if !b.cache.Configured() {
		return errors.Wrap(entities.ErrInvalidCache, op)
	}

	raw, err := b.fetch(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}

	if _, err := b.validate(raw); err != nil {
		b.log.Warn("fetched rates document rejected, cache left unchanged", "op", op, "error", err)
		return nil
	}

	if err := b.cache.WriteCache(ctx, string(raw)); err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

// RefreshRates skips the cache: it fetches, validates and replaces the loaded
// rates, then writes the cache when one is configured. A failed write is
// returned even though the new rates are already loaded.
func (b *Bank) RefreshRates(ctx context.Context) error {
	return b.refresh(ctx, false)
}

// refresh implements RefreshRates. With bestEffort set a failed cache write is
// logged instead of returned.
func (b *Bank) refresh(ctx context.Context, bestEffort bool) error {
	const op = "bank.RefreshRates"

	raw, err := b.fetch(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}

	doc, err := b.validate(raw)
	if err != nil {
		b.log.Warn("fetched rates document rejected", "op", op, "error", err)
		return nil
	}

	b.apply(doc)

	if !b.cache.Configured() {
		return nil
	}
	if err := b.cache.WriteCache(ctx, string(raw)); err != nil {
		if !bestEffort {
			return errors.Wrap(err, op)
		}
		b.log.Warn("failed to write rates cache", "op", op, "error", err)
	}

	return nil
}

// GetRate returns the rate for from -> to, reloading expired rates first.
// Mid rates are derived by inversion or through the source currency when no
// direct edge exists. Bid and ask rates are only looked up directly.
func (b *Bank) GetRate(ctx context.Context, from, to string, opts ...LookupOption) (float64, error) {
	const op = "bank.GetRate"

	o := lookupOptions{rateType: entities.Mid}
	for _, opt := range opts {
		opt(&o)
	}

	if from == to {
		return 1, nil
	}

	if err := b.ExpireRates(ctx); err != nil {
		return 0, errors.Wrap(err, op)
	}

	return b.resolve(from, to, o.rateType)
}

// AddRate stores a manual edge. It is dropped on the next reload.
func (b *Bank) AddRate(from, to string, rate float64) {
	b.store.SetRate(from, to, rate)
}

func (b *Bank) Rates() []entities.Rate {
	return b.store.Rates()
}

// Document returns the last applied document, or nil.
func (b *Bank) Document() *entities.RatesDocument {
	return b.doc
}

// RatesTimestamp is the timestamp of the last applied document.
func (b *Bank) RatesTimestamp() time.Time {
	if b.doc == nil {
		return time.Time{}
	}
	return b.doc.Time()
}

func (b *Bank) AppID() string {
	return b.appID
}

func (b *Bank) SetAppID(appID string) {
	b.appID = appID
}

func (b *Bank) Cache() cache.Location {
	return b.cache.Location()
}

func (b *Bank) SetCache(loc cache.Location) error {
	const op = "bank.SetCache"

	ch, err := cache.New(loc)
	if err != nil {
		return errors.Wrap(err, op)
	}
	b.cache = ch
	b.cacheLoc = loc

	return nil
}

func (b *Bank) Source() string {
	return b.sourceCode
}

// SetSource changes the source currency. Codes the currency checker does not
// know fall back to USD.
func (b *Bank) SetSource(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !b.known(code) {
		if code != "" {
			b.log.Warn("unknown source currency, using default", "currency", code, "default", entities.DefaultSource)
		}
		code = entities.DefaultSource
	}
	b.sourceCode = code
}

func (b *Bank) Date() time.Time {
	return b.date
}

// SetDate selects historical rates for the given day. The zero time selects
// the latest rates.
func (b *Bank) SetDate(date time.Time) {
	b.date = date
}

func (b *Bank) BidAsk() bool {
	return b.bidAsk
}

func (b *Bank) SetBidAsk(on bool) {
	b.bidAsk = on
}

func (b *Bank) ForceRefresh() bool {
	return b.forceRefresh
}

func (b *Bank) SetForceRefresh(on bool) {
	b.forceRefresh = on
}

func (b *Bank) Symbols() []string {
	return slices.Clone(b.symbols)
}

func (b *Bank) SetSymbols(symbols ...string) {
	b.symbols = slices.Clone(symbols)
}

func (b *Bank) known(code string) bool {
	if code == "" {
		return false
	}
	if b.currencies == nil {
		return true
	}
	return b.currencies.IsKnown(code)
}

func (b *Bank) fetch(ctx context.Context) ([]byte, error) {
	if b.appID == "" {
		return nil, entities.ErrNoCredential
	}

	return b.source.Fetch(ctx, b.request())
}

// validate parses raw and rejects documents quoted against a base other than
// the source currency. A document without a base is taken as quoted against
// the source.
func (b *Bank) validate(raw []byte) (*entities.RatesDocument, error) {
	const op = "bank.validate"

	doc, err := document.Validate(raw, b.bidAsk)
	if err != nil {
		return nil, err
	}

	if doc.Base != "" && !strings.EqualFold(doc.Base, b.sourceCode) {
		return nil, errors.Wrapf(entities.ErrMalformedDocument, "%s: base %s, source %s", op, doc.Base, b.sourceCode)
	}

	return doc, nil
}

func (b *Bank) request() entities.Request {
	return entities.Request{
		AppID:           b.appID,
		Source:          b.sourceCode,
		Date:            b.date,
		Symbols:         slices.Clone(b.symbols),
		ShowAlternative: b.showAlternative,
		PrettyPrint:     b.prettyPrint,
		BidAsk:          b.bidAsk,
	}
}

// apply replaces the whole store with the document's rates and starts a new
// expiry window from the document's timestamp. Codes the currency checker
// does not know are skipped.
func (b *Bank) apply(doc *entities.RatesDocument) {
	b.store.Clear()

	var skipped []string
	for _, code := range slices.Sorted(maps.Keys(doc.Rates)) {
		if !b.known(code) {
			skipped = append(skipped, code)
			continue
		}

		v := doc.Rates[code]
		b.store.SetRate(b.sourceCode, code, v.Mid)
		if v.HasBid {
			b.store.SetRate(b.sourceCode, entities.Bid.Key(code), v.Bid)
		}
		if v.HasAsk {
			b.store.SetRate(b.sourceCode, entities.Ask.Key(code), v.Ask)
		}
	}

	if len(skipped) > 0 {
		b.log.Debug("skipped unknown currencies", "currencies", skipped)
	}

	b.doc = doc
	b.resetExpiry()
}
