package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oterdem/mcptab/config"
)

// Client fetches the latest exchange rates for the fixed currency set
// relative to a base currency.
type Client struct {
	baseURL    string
	apiKey     string
	currencies []string
	httpClient *http.Client
	clock      func() time.Time
}

// NewClient constructs a rate API client. Pass baseURL "" for the default
// endpoint; clock nil defaults to time.Now.
func NewClient(baseURL, apiKey string, clock func() time.Time) *Client {
	if baseURL == "" {
		baseURL = config.RateAPIBaseURL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		currencies: append([]string(nil), config.SupportedCurrencies...),
		httpClient: &http.Client{Timeout: config.DefaultRateFetchTimeout},
		clock:      clock,
	}
}

type latestResponse struct {
	Data map[string]float64 `json:"data"`
}

// Fetch performs the external HTTP fetch of rates relative to base. A
// non-200 response or malformed body is returned as an error for the caller
// to surface as text; nothing panics or retries here.
func (c *Client) Fetch(ctx context.Context, base string) (Snapshot, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if c.apiKey == "" {
		return Snapshot{}, fmt.Errorf("rates: missing API key; set %s", config.RateAPIKeyEnv)
	}

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("currencies", strings.Join(c.currencies, ","))
	q.Set("base_currency", base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("rates: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("rates: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Snapshot{}, fmt.Errorf("rates: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("rates: API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed latestResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Snapshot{}, fmt.Errorf("rates: decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return Snapshot{}, fmt.Errorf("rates: response has no rate data")
	}

	return Snapshot{FetchedAt: c.clock(), Base: base, Rates: parsed.Data}, nil
}
