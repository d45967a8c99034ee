package rates

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"budget/internal/currency"
)

// ECBDailyURL is the European Central Bank daily reference rate feed.
const ECBDailyURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

// ECBProvider reads the ECB reference rates, which are quoted against EUR.
type ECBProvider struct {
	url    string
	client *http.Client
}

func NewECBProvider(url string, client *http.Client) *ECBProvider {
	if url == "" {
		url = ECBDailyURL
	}
	if client == nil {
		client = defaultClient()
	}
	return &ECBProvider{url: url, client: client}
}

func (p *ECBProvider) Name() string { return "ecb" }

func (p *ECBProvider) Fetch(ctx context.Context) (currency.RateTable, error) {
	body, err := get(ctx, p.client, p.url, "application/xml")
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("ecb: %w", err)
	}
	tbl, err := parseECB(body)
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("ecb: %w", err)
	}
	tbl.Source = p.Name()
	return tbl, nil
}

// parseECB extracts <Cube currency=".." rate=".."/> elements and the
// enclosing <Cube time=".."> date.
func parseECB(raw []byte) (currency.RateTable, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return currency.RateTable{}, fmt.Errorf("failed to parse XML: %w", err)
	}

	cubes := doc.FindElements("//Cube[@currency]")
	if len(cubes) == 0 {
		return currency.RateTable{}, fmt.Errorf("no rate data found in XML")
	}

	rates := make(map[string]decimal.Decimal, len(cubes))
	for _, c := range cubes {
		code := c.SelectAttrValue("currency", "")
		rate, err := decimal.NewFromString(c.SelectAttrValue("rate", ""))
		if err != nil {
			return currency.RateTable{}, fmt.Errorf("rate for %s: %w", code, err)
		}
		rates[code] = rate
	}

	fetched := time.Now().UTC()
	if day := doc.FindElement("//Cube[@time]"); day != nil {
		if t, err := time.Parse(time.DateOnly, day.SelectAttrValue("time", "")); err == nil {
			fetched = t
		}
	}
	return currency.NewRateTable("EUR", rates, fetched), nil
}
