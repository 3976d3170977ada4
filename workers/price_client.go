package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Quote is one symbol's current bid/ask from the price service.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// PriceClient fetches market quotes from the external price service. One
// batched request per sweep, never per position.
type PriceClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewPriceClient() *PriceClient {
	baseURL := os.Getenv("PRICE_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("PRICE_SERVICE_URL environment variable is required")
	}

	return &PriceClient{
		BaseURL: baseURL,
		Token:   os.Getenv("ARENA_SERVICE_TOKEN"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetQuotes fetches quotes for a set of symbols in one call. Symbols the
// service cannot price are simply absent from the result — callers must
// tolerate holes.
func (c *PriceClient) GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if len(symbols) == 0 {
		return map[string]Quote{}, nil
	}

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/prices", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("symbols", strings.Join(symbols, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call price service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("price service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Quotes []Quote `json:"quotes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode price service response: %w", err)
	}

	quotes := make(map[string]Quote, len(response.Quotes))
	for _, qt := range response.Quotes {
		quotes[qt.Symbol] = qt
	}
	return quotes, nil
}
