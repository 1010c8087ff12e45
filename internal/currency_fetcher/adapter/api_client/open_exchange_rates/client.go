// Package open_exchange_rates is the HTTP client for the Open Exchange Rates
// API (https://openexchangerates.org).
package open_exchange_rates

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/langowen/oxrbank/internal/entities"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://openexchangerates.org/api/"

	dateLayout = "2006-01-02"
)

// errorKinds maps the "message" field of an API error body to an error kind.
var errorKinds = map[string]error{
	"access_restricted": entities.ErrAccessRestricted,
	"not_allowed":       entities.ErrCredentialInactive,
	"invalid_app_id":    entities.ErrInvalidCredential,
	"missing_app_id":    entities.ErrNoCredential,
}

type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retrier     *retrier.Retrier
}

type Option func(c *Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit allows rps requests per second with bursts of burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.rateLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetries retries transport failures up to n times with exponential
// backoff starting at backoff.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retrier = retrier.New(retrier.ExponentialBackoff(n, backoff), transportClassifier{})
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	const op = "open_exchange_rates.New"

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	c := &Client{
		baseURL:     base,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
		retrier:     retrier.New(retrier.ExponentialBackoff(2, 200*time.Millisecond), transportClassifier{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BuildRequestURL returns the latest.json or historical/<date>.json URL for req.
func (c *Client) BuildRequestURL(req entities.Request) (string, error) {
	const op = "open_exchange_rates.BuildRequestURL"

	if req.AppID == "" {
		return "", errors.Wrap(entities.ErrNoCredential, op)
	}

	path := "latest.json"
	if req.Historical() {
		path = "historical/" + req.Date.Format(dateLayout) + ".json"
	}

	u := c.baseURL.JoinPath(path)

	q := u.Query()
	q.Set("app_id", req.AppID)
	if req.Source != "" && req.Source != entities.DefaultSource {
		q.Set("base", req.Source)
	}
	if len(req.Symbols) > 0 {
		q.Set("symbols", strings.Join(req.Symbols, ","))
	}
	q.Set("show_alternative", strconv.FormatBool(req.ShowAlternative))
	q.Set("prettyprint", strconv.FormatBool(req.PrettyPrint))
	if req.BidAsk {
		q.Set("show_bid_ask", "1")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Fetch downloads the raw rates document. The credential is checked before
// any request is made. Errors reported by the API come back as
// *entities.APIError.
func (c *Client) Fetch(ctx context.Context, req entities.Request) ([]byte, error) {
	const op = "open_exchange_rates.Fetch"

	apiURL, err := c.BuildRequestURL(req)
	if err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(&entities.APIError{Kind: entities.ErrFetch, Description: err.Error()}, op)
	}

	slog.Debug("fetching rates", "op", op, "historical", req.Historical(), "base", req.Source)

	var (
		body   []byte
		status int
	)
	err = c.retrier.RunCtx(ctx, func(ctx context.Context) error {
		var err error
		body, status, err = c.get(ctx, apiURL)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(&entities.APIError{Kind: entities.ErrFetch, Description: err.Error()}, op)
	}

	if status != http.StatusOK {
		return nil, errors.Wrap(responseError(status, body), op)
	}

	if apiErr := bodyError(status, body); apiErr != nil {
		return nil, errors.Wrap(apiErr, op)
	}

	return body, nil
}

func (c *Client) get(ctx context.Context, apiURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request error: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &transportError{err: err}
	}

	return body, resp.StatusCode, nil
}

type errorBody struct {
	Error       bool   `json:"error"`
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// bodyError returns the error carried in body, or nil when body is not an
// error payload.
func bodyError(status int, body []byte) *entities.APIError {
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil || !e.Error || e.Message == "" {
		return nil
	}

	if e.Status != 0 {
		status = e.Status
	}

	kind, ok := errorKinds[e.Message]
	if !ok {
		kind = entities.ErrFetch
	}

	return &entities.APIError{
		Status:      status,
		Code:        e.Message,
		Description: e.Description,
		Kind:        kind,
	}
}

func responseError(status int, body []byte) *entities.APIError {
	if apiErr := bodyError(status, body); apiErr != nil {
		return apiErr
	}

	kind := entities.ErrFetch
	switch status {
	case http.StatusUnauthorized:
		kind = entities.ErrInvalidCredential
	case http.StatusForbidden:
		kind = entities.ErrAccessRestricted
	case http.StatusTooManyRequests:
		kind = entities.ErrCredentialInactive
	}

	return &entities.APIError{
		Status:      status,
		Description: http.StatusText(status),
		Kind:        kind,
	}
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "transport: " + e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

// transportClassifier retries transport failures only. Anything the server
// answered is final.
type transportClassifier struct{}

func (transportClassifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}

	var te *transportError
	if errors.As(err, &te) {
		return retrier.Retry
	}

	return retrier.Fail
}
