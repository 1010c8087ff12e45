package open_exchange_rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/langowen/oxrbank/internal/entities"
)

type roundTripperFn func(*http.Request) (*http.Response, error)

func (fn roundTripperFn) RoundTrip(r *http.Request) (*http.Response, error) {
	return fn(r)
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{WithRetries(0, time.Millisecond), WithRateLimit(1000, 1000)}, opts...)
	c, err := New(baseURL, opts...)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return c
}

func TestBuildRequestURL(t *testing.T) {
	c := newTestClient(t, "")

	testCases := []struct {
		name      string
		req       entities.Request
		path      string
		query     map[string]string
		absent    []string
		expectErr error
	}{
		{
			name: "Latest with defaults",
			req:  entities.Request{AppID: "test_app_id", Source: "USD", PrettyPrint: true},
			path: "/api/latest.json",
			query: map[string]string{
				"app_id":           "test_app_id",
				"show_alternative": "false",
				"prettyprint":      "true",
			},
			absent: []string{"base", "symbols", "show_bid_ask"},
		},
		{
			name: "Historical with base and symbols",
			req: entities.Request{
				AppID:           "test_app_id",
				Source:          "EUR",
				Date:            time.Date(2015, 12, 11, 0, 0, 0, 0, time.UTC),
				Symbols:         []string{"USD", "GBP"},
				ShowAlternative: true,
			},
			path: "/api/historical/2015-12-11.json",
			query: map[string]string{
				"base":             "EUR",
				"symbols":          "USD,GBP",
				"show_alternative": "true",
				"prettyprint":      "false",
			},
			absent: []string{"show_bid_ask"},
		},
		{
			name:  "Bid ask",
			req:   entities.Request{AppID: "test_app_id", BidAsk: true},
			path:  "/api/latest.json",
			query: map[string]string{"show_bid_ask": "1"},
		},
		{
			name:      "No credential",
			req:       entities.Request{Source: "USD"},
			expectErr: entities.ErrNoCredential,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := c.BuildRequestURL(tc.req)
			if tc.expectErr != nil {
				if !errors.Is(err, tc.expectErr) {
					t.Errorf("Expected error: %v, got: %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			u, err := url.Parse(raw)
			if err != nil {
				t.Fatalf("Failed to parse %s: %v", raw, err)
			}
			if u.Host != "openexchangerates.org" {
				t.Errorf("Expected host: openexchangerates.org, got: %s", u.Host)
			}
			if u.Path != tc.path {
				t.Errorf("Expected path: %s, got: %s", tc.path, u.Path)
			}

			q := u.Query()
			for key, want := range tc.query {
				if got := q.Get(key); got != want {
					t.Errorf("Expected %s: %s, got: %s", key, want, got)
				}
			}
			for _, key := range tc.absent {
				if q.Has(key) {
					t.Errorf("Expected %s to be absent, got: %s", key, q.Get(key))
				}
			}
		})
	}
}

func TestFetch(t *testing.T) {
	const doc = `{"timestamp": 1449877801, "base": "USD", "rates": {"EUR": 0.655}}`

	var gotPath, gotAppID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAppID = r.URL.Query().Get("app_id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/api/")

	body, err := c.Fetch(context.Background(), entities.Request{AppID: "test_app_id"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(body) != doc {
		t.Errorf("Expected body: %s, got: %s", doc, body)
	}
	if gotPath != "/api/latest.json" {
		t.Errorf("Expected path: /api/latest.json, got: %s", gotPath)
	}
	if gotAppID != "test_app_id" {
		t.Errorf("Expected app_id: test_app_id, got: %s", gotAppID)
	}
}

func TestFetch_NoCredentialMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.Fetch(context.Background(), entities.Request{})
	if !errors.Is(err, entities.ErrNoCredential) {
		t.Errorf("Expected error: %v, got: %v", entities.ErrNoCredential, err)
	}
	if hits.Load() != 0 {
		t.Errorf("Expected no requests, got: %d", hits.Load())
	}
}

func TestFetch_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		expected error
		code     string
	}{
		{
			name:     "Access restricted",
			status:   http.StatusForbidden,
			body:     `{"error": true, "status": 403, "message": "access_restricted", "description": "Access restricted for repeated over-use"}`,
			expected: entities.ErrAccessRestricted,
			code:     "access_restricted",
		},
		{
			name:     "Not allowed",
			status:   http.StatusForbidden,
			body:     `{"error": true, "status": 403, "message": "not_allowed", "description": "Inactive account"}`,
			expected: entities.ErrCredentialInactive,
			code:     "not_allowed",
		},
		{
			name:     "Invalid app id",
			status:   http.StatusUnauthorized,
			body:     `{"error": true, "status": 401, "message": "invalid_app_id"}`,
			expected: entities.ErrInvalidCredential,
			code:     "invalid_app_id",
		},
		{
			name:     "Missing app id",
			status:   http.StatusUnauthorized,
			body:     `{"error": true, "status": 401, "message": "missing_app_id"}`,
			expected: entities.ErrNoCredential,
			code:     "missing_app_id",
		},
		{
			name:     "Unknown code",
			status:   http.StatusBadRequest,
			body:     `{"error": true, "status": 400, "message": "invalid_base"}`,
			expected: entities.ErrFetch,
			code:     "invalid_base",
		},
		{
			name:     "Error body with 200",
			status:   http.StatusOK,
			body:     `{"error": true, "status": 403, "message": "access_restricted"}`,
			expected: entities.ErrAccessRestricted,
			code:     "access_restricted",
		},
		{
			name:     "Bare 401",
			status:   http.StatusUnauthorized,
			body:     `Unauthorized`,
			expected: entities.ErrInvalidCredential,
		},
		{
			name:     "Bare 403",
			status:   http.StatusForbidden,
			expected: entities.ErrAccessRestricted,
		},
		{
			name:     "Bare 429",
			status:   http.StatusTooManyRequests,
			expected: entities.ErrCredentialInactive,
		},
		{
			name:     "Bare 500",
			status:   http.StatusInternalServerError,
			body:     `<html>boom</html>`,
			expected: entities.ErrFetch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)

			_, err := c.Fetch(context.Background(), entities.Request{AppID: "test_app_id"})
			if !errors.Is(err, tc.expected) {
				t.Fatalf("Expected error: %v, got: %v", tc.expected, err)
			}

			var apiErr *entities.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected APIError, got: %T", err)
			}
			if apiErr.Status != tc.status && tc.status != http.StatusOK {
				t.Errorf("Expected status: %d, got: %d", tc.status, apiErr.Status)
			}
			if apiErr.Code != tc.code {
				t.Errorf("Expected code: %s, got: %s", tc.code, apiErr.Code)
			}
		})
	}
}

func TestFetch_RetriesTransportFailures(t *testing.T) {
	const doc = `{"timestamp": 1, "rates": {}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(doc))
	}))
	defer server.Close()

	var attempts atomic.Int32
	transport := roundTripperFn(func(r *http.Request) (*http.Response, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("connection reset by peer")
		}
		return http.DefaultTransport.RoundTrip(r)
	})

	c := newTestClient(t, server.URL,
		WithHTTPClient(&http.Client{Transport: transport}),
		WithRetries(3, time.Millisecond),
	)

	body, err := c.Fetch(context.Background(), entities.Request{AppID: "test_app_id"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(body) != doc {
		t.Errorf("Expected body: %s, got: %s", doc, body)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts.Load())
	}
}

func TestFetch_TransportFailure(t *testing.T) {
	var attempts atomic.Int32
	transport := roundTripperFn(func(r *http.Request) (*http.Response, error) {
		attempts.Add(1)
		return nil, errors.New("no route to host")
	})

	c := newTestClient(t, "http://rates.invalid/api/",
		WithHTTPClient(&http.Client{Transport: transport}),
		WithRetries(2, time.Millisecond),
	)

	_, err := c.Fetch(context.Background(), entities.Request{AppID: "test_app_id"})
	if !errors.Is(err, entities.ErrFetch) {
		t.Errorf("Expected error: %v, got: %v", entities.ErrFetch, err)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts.Load())
	}
}

func TestFetch_ServerErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithRetries(3, time.Millisecond))

	if _, err := c.Fetch(context.Background(), entities.Request{AppID: "test_app_id"}); err == nil {
		t.Fatal("Expected error, got nil")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 request, got: %d", hits.Load())
	}
}
