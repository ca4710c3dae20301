// Package ratefeed keeps currency exchange rates fresh by polling an
// external rate source on a fixed interval.
package ratefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/agilewallet/backend/internal/app/domain/currency"
	"github.com/agilewallet/backend/pkg/logger"
)

// Fetcher retrieves the current USD rate for a currency.
type Fetcher interface {
	Fetch(ctx context.Context, c currency.Currency) (float64, string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, c currency.Currency) (float64, string, error)

func (f FetcherFunc) Fetch(ctx context.Context, c currency.Currency) (float64, string, error) {
	if f == nil {
		return 0, "", nil
	}
	return f(ctx, c)
}

// HTTPFetcher queries a JSON rate endpoint. The endpoint receives the
// currency symbol as a query parameter and must answer with
// {"rate": <number>, "source": <string>}.
type HTTPFetcher struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

// NewHTTPFetcher builds a fetcher for the given endpoint. apiKey, when set,
// is sent as a bearer token.
func NewHTTPFetcher(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPFetcher, error) {
	if log == nil {
		log = logger.NewDefault("ratefeed-fetcher")
	}
	if client == nil {
		client = http.DefaultClient
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("endpoint %q is not an absolute url", endpoint)
	}
	return &HTTPFetcher{client: client, endpoint: parsed, apiKey: apiKey, log: log}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, c currency.Currency) (float64, string, error) {
	target := *f.endpoint
	query := target.Query()
	query.Set("symbol", c.ID)
	query.Set("quote", "USD")
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("rate endpoint returned %s", resp.Status)
	}

	var payload struct {
		Rate   float64 `json:"rate"`
		Source string  `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, "", fmt.Errorf("decode rate response: %w", err)
	}
	if payload.Rate <= 0 {
		return 0, "", fmt.Errorf("rate endpoint returned non-positive rate %v", payload.Rate)
	}
	return payload.Rate, payload.Source, nil
}
