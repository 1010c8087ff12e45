package document

import (
	"errors"
	"testing"

	"github.com/langowen/oxrbank/internal/entities"
)

func TestIsValid(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		bidAsk bool
		valid  bool
	}{
		{name: "Flat rates", raw: `{"timestamp": 1700000000, "base": "USD", "rates": {"EUR": 0.9, "JPY": 150}}`, valid: true},
		{name: "Empty rates", raw: `{"timestamp": 1700000000, "rates": {}}`, valid: true},
		{name: "Structured rates", raw: `{"timestamp": 1, "rates": {"EUR": {"rate": 0.9}, "GBP": {"mid": 0.8, "bid": 0.79, "ask": 0.81}}}`, valid: true},
		{name: "Zero rate", raw: `{"timestamp": 1, "rates": {"XXX": 0}}`, valid: true},
		{name: "Empty body", raw: ``, valid: false},
		{name: "Invalid JSON", raw: `{invalid_json: "An error"}`, valid: false},
		{name: "Error body", raw: `{"error": "An error"}`, valid: false},
		{name: "Missing timestamp", raw: `{"rates": {"EUR": 0.9}}`, valid: false},
		{name: "Missing rates", raw: `{"timestamp": 1}`, valid: false},
		{name: "Null rates", raw: `{"timestamp": 1, "rates": null}`, valid: false},
		{name: "Rates not an object", raw: `{"timestamp": 1, "rates": [1, 2]}`, valid: false},
		{name: "String timestamp", raw: `{"timestamp": "yesterday", "rates": {}}`, valid: false},
		{name: "String rate", raw: `{"timestamp": 1, "rates": {"EUR": "0.9"}}`, valid: false},
		{name: "Object without rate", raw: `{"timestamp": 1, "rates": {"EUR": {"bid": 0.9}}}`, valid: false},
		{name: "Null rate", raw: `{"timestamp": 1, "rates": {"EUR": null, "GBP": 0.8}}`, valid: false},
		{name: "Null mid", raw: `{"timestamp": 1, "rates": {"EUR": {"mid": null}}}`, valid: false},
		{name: "Negative rate", raw: `{"timestamp": 1, "rates": {"EUR": -1}}`, valid: false},
		{name: "Bid only without bid/ask mode", raw: `{"timestamp": 1, "rates": {"EUR": {"rate": 0.9, "bid": 0.89}}}`, valid: true},
		{name: "Bid only in bid/ask mode", raw: `{"timestamp": 1, "rates": {"EUR": {"rate": 0.9, "bid": 0.89}}}`, bidAsk: true, valid: false},
		{name: "No bounds in bid/ask mode", raw: `{"timestamp": 1, "rates": {"EUR": {"rate": 0.9}}}`, bidAsk: true, valid: true},
		{name: "Both bounds in bid/ask mode", raw: `{"timestamp": 1, "rates": {"EUR": {"rate": 0.9, "bid": 0.89, "ask": 0.91}}}`, bidAsk: true, valid: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValid([]byte(tc.raw), tc.bidAsk); got != tc.valid {
				t.Errorf("Expected valid: %v, got: %v", tc.valid, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	raw := `{
		"timestamp": 1449877801,
		"base": "USD",
		"rates": {
			"EUR": 0.655,
			"GBP": {"mid": 0.7, "bid": 0.69, "ask": 0.71},
			"JPY": {"rate": 120.5}
		}
	}`

	doc, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if doc.Timestamp != 1449877801 {
		t.Errorf("Expected timestamp: %d, got: %d", 1449877801, doc.Timestamp)
	}
	if doc.Base != "USD" {
		t.Errorf("Expected base: USD, got: %s", doc.Base)
	}

	expected := map[string]entities.RateValue{
		"EUR": {Mid: 0.655},
		"GBP": {Mid: 0.7, Bid: 0.69, Ask: 0.71, HasBid: true, HasAsk: true},
		"JPY": {Mid: 120.5},
	}
	for code, want := range expected {
		if got := doc.Rates[code]; got != want {
			t.Errorf("Rate %s: expected %+v, got: %+v", code, want, got)
		}
	}
}

func TestParse_ErrorKind(t *testing.T) {
	_, err := Parse([]byte(`{"timestamp": 1}`))
	if !errors.Is(err, entities.ErrMalformedDocument) {
		t.Errorf("Expected error: %v, got: %v", entities.ErrMalformedDocument, err)
	}
}
