// Package sla fetches scanner SLA readings from the Forta explorer service.
package sla

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"context"
)

// Fetcher is the narrow interface the poller consumes.
type Fetcher interface {
	FetchSLA(ctx context.Context, address string) (float64, error)
}

// Client fetches SLA values over HTTP. The scanner address is appended to
// the configured base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an SLA client with an explicit request timeout so a
// hung endpoint cannot stall a poll tick.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type slaResponse struct {
	Statistics struct {
		Avg float64 `json:"avg"`
	} `json:"statistics"`
}

// FetchSLA performs a GET for one scanner address and returns the average
// SLA. Any transport, status, or body failure is a fetch failure the caller
// retries on the next tick.
func (c *Client) FetchSLA(ctx context.Context, address string) (float64, error) {
	url := c.baseURL + address

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sla fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}

	var parsed slaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}
	return parsed.Statistics.Avg, nil
}
