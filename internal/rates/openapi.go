package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/currency"
)

// OpenAPIDefaultURL is the keyless open.er-api.com endpoint for USD.
const OpenAPIDefaultURL = "https://open.er-api.com/v6/latest/USD"

// OpenAPIProvider reads JSON feeds shaped like open.er-api.com:
// {"result":"success","base_code":"USD","time_last_update_unix":..,"rates":{"EUR":0.9}}.
type OpenAPIProvider struct {
	url    string
	client *http.Client
}

func NewOpenAPIProvider(url string, client *http.Client) *OpenAPIProvider {
	if url == "" {
		url = OpenAPIDefaultURL
	}
	if client == nil {
		client = defaultClient()
	}
	return &OpenAPIProvider{url: url, client: client}
}

func (p *OpenAPIProvider) Name() string { return "openapi" }

type openAPIResponse struct {
	Result     string                     `json:"result"`
	ErrorType  string                     `json:"error-type"`
	BaseCode   string                     `json:"base_code"`
	LastUpdate int64                      `json:"time_last_update_unix"`
	Rates      map[string]decimal.Decimal `json:"rates"`
}

func (p *OpenAPIProvider) Fetch(ctx context.Context) (currency.RateTable, error) {
	body, err := get(ctx, p.client, p.url, "application/json")
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("openapi: %w", err)
	}

	var resp openAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return currency.RateTable{}, fmt.Errorf("openapi: decode response: %w", err)
	}
	if resp.Result != "" && resp.Result != "success" {
		return currency.RateTable{}, fmt.Errorf("openapi: %s", resp.ErrorType)
	}
	if resp.BaseCode == "" || len(resp.Rates) == 0 {
		return currency.RateTable{}, fmt.Errorf("openapi: %w", ErrNoRates)
	}

	fetched := time.Now().UTC()
	if resp.LastUpdate > 0 {
		fetched = time.Unix(resp.LastUpdate, 0).UTC()
	}
	tbl := currency.NewRateTable(resp.BaseCode, resp.Rates, fetched)
	tbl.Source = p.Name()
	return tbl, nil
}
