// Package document parses and validates raw rates documents before they are
// allowed anywhere near the cache or the rate store.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/langowen/oxrbank/internal/entities"
)

type rawDocument struct {
	Timestamp *json.Number               `json:"timestamp"`
	Base      string                     `json:"base"`
	Rates     map[string]json.RawMessage `json:"rates"`
}

type rawValue struct {
	Rate *float64 `json:"rate"`
	Mid  *float64 `json:"mid"`
	Bid  *float64 `json:"bid"`
	Ask  *float64 `json:"ask"`
}

// Parse decodes raw into a RatesDocument. The document must carry a "rates"
// object and a numeric "timestamp"; every rate is either a number or an object
// with "rate" or "mid".
func Parse(raw []byte) (*entities.RatesDocument, error) {
	const op = "document.Parse"

	var doc rawDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, entities.ErrMalformedDocument, err)
	}

	if doc.Rates == nil {
		return nil, fmt.Errorf("%s: %w: missing rates", op, entities.ErrMalformedDocument)
	}
	if doc.Timestamp == nil {
		return nil, fmt.Errorf("%s: %w: missing timestamp", op, entities.ErrMalformedDocument)
	}

	ts, err := doc.Timestamp.Int64()
	if err != nil {
		f, ferr := doc.Timestamp.Float64()
		if ferr != nil {
			return nil, fmt.Errorf("%s: %w: bad timestamp %q", op, entities.ErrMalformedDocument, doc.Timestamp.String())
		}
		ts = int64(f)
	}

	out := &entities.RatesDocument{
		Timestamp: ts,
		Base:      doc.Base,
		Rates:     make(map[string]entities.RateValue, len(doc.Rates)),
	}

	for code, msg := range doc.Rates {
		v, err := parseValue(msg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: rate %s: %v", op, entities.ErrMalformedDocument, code, err)
		}
		out.Rates[code] = v
	}

	return out, nil
}

func parseValue(msg json.RawMessage) (entities.RateValue, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return entities.RateValue{}, fmt.Errorf("empty value")
	}
	if bytes.Equal(msg, []byte("null")) {
		return entities.RateValue{}, fmt.Errorf("null value")
	}

	if msg[0] != '{' {
		var f float64
		if err := json.Unmarshal(msg, &f); err != nil {
			return entities.RateValue{}, err
		}
		if f < 0 {
			return entities.RateValue{}, fmt.Errorf("negative rate %v", f)
		}
		return entities.RateValue{Mid: f}, nil
	}

	var rv rawValue
	if err := json.Unmarshal(msg, &rv); err != nil {
		return entities.RateValue{}, err
	}

	mid := rv.Mid
	if mid == nil {
		mid = rv.Rate
	}
	if mid == nil {
		return entities.RateValue{}, fmt.Errorf("object without rate or mid")
	}
	if *mid < 0 {
		return entities.RateValue{}, fmt.Errorf("negative rate %v", *mid)
	}

	v := entities.RateValue{Mid: *mid}
	if rv.Bid != nil {
		v.Bid, v.HasBid = *rv.Bid, true
	}
	if rv.Ask != nil {
		v.Ask, v.HasAsk = *rv.Ask, true
	}
	return v, nil
}

// Validate parses raw and, in bid/ask mode, rejects entries that carry only one
// of the two spread bounds.
func Validate(raw []byte, bidAsk bool) (*entities.RatesDocument, error) {
	const op = "document.Validate"

	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if bidAsk {
		for code, v := range doc.Rates {
			if v.HasBid != v.HasAsk {
				return nil, fmt.Errorf("%s: %w: %s has only one of bid/ask", op, entities.ErrMalformedDocument, code)
			}
		}
	}

	return doc, nil
}

func IsValid(raw []byte, bidAsk bool) bool {
	_, err := Validate(raw, bidAsk)
	return err == nil
}
