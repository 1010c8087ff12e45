package entities

import (
	"strings"
	"time"
)

const DefaultSource = "USD"

type RateType string

const (
	Mid RateType = "mid"
	Bid RateType = "bid"
	Ask RateType = "ask"
)

func ParseRateType(s string) (RateType, bool) {
	switch RateType(strings.ToLower(s)) {
	case "", Mid:
		return Mid, true
	case Bid:
		return Bid, true
	case Ask:
		return Ask, true
	}
	return "", false
}

func (t RateType) String() string {
	if t == "" {
		return string(Mid)
	}
	return string(t)
}

// Key returns the store key of the target currency for this rate type:
// "EUR" for mid, "EUR_bid" and "EUR_ask" for the spread bounds.
func (t RateType) Key(currency string) string {
	if t == "" || t == Mid {
		return currency
	}
	return currency + "_" + string(t)
}

// Rate is a directed edge From -> To.
type Rate struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Value float64 `json:"value"`
}

// RateValue is one entry of the "rates" object. Flat numbers only carry Mid.
type RateValue struct {
	Mid    float64
	Bid    float64
	Ask    float64
	HasBid bool
	HasAsk bool
}

type RatesDocument struct {
	Timestamp int64
	Base      string
	Rates     map[string]RateValue
}

func (d *RatesDocument) Time() time.Time {
	return time.Unix(d.Timestamp, 0)
}

// Request describes one call to the rates API.
type Request struct {
	AppID           string
	Source          string
	Date            time.Time
	Symbols         []string
	ShowAlternative bool
	PrettyPrint     bool
	BidAsk          bool
}

func (r Request) Historical() bool {
	return !r.Date.IsZero()
}

// Quote is a resolved rate as served by the rates API.
type Quote struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Type  RateType `json:"type"`
	Value float64  `json:"rate"`
}

// RatesSnapshot is every stored edge together with the document timestamp and
// the expiry of the loaded rates. Zero times are omitted.
type RatesSnapshot struct {
	Timestamp time.Time `json:"timestamp,omitzero"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Rates     []Rate    `json:"rates"`
}
