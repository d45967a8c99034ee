// Package rates fetches exchange-rate tables from public feeds, caches them
// and refreshes them on a schedule.
package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"budget/internal/currency"
)

var (
	ErrNoRates    = errors.New("no exchange rates available")
	ErrNoProvider = errors.New("no rate provider configured")
)

// Provider fetches a fresh rate table.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (currency.RateTable, error)
}

const defaultTimeout = 10 * time.Second

func defaultClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// get performs a GET and returns the body of a 200 response.
func get(ctx context.Context, client *http.Client, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
