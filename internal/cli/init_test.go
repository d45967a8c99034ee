package cli

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/currency"
	"budget/internal/rates"
	"budget/internal/store/memory"
)

type switchableProvider struct {
	eurPerUSD string
}

func (p *switchableProvider) Name() string { return "test" }

func (p *switchableProvider) Fetch(context.Context) (currency.RateTable, error) {
	return currency.NewRateTable("USD", map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString(p.eurPerUSD),
	}, time.Now()), nil
}

func TestNewReportService_RefreshClearsCachedReports(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	cat, err := st.CreateCategory(ctx, core.Category{Name: "Travel", Budget: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateTransaction(ctx, core.Transaction{
		Description: "Train",
		Amount:      decimal.NewFromInt(50),
		Currency:    "EUR",
		CategoryID:  cat.ID,
		Type:        core.Expense,
		Date:        core.NewDate(2024, 3, 5),
	}); err != nil {
		t.Fatal(err)
	}

	p := &switchableProvider{eurPerUSD: "0.5"}
	refresher := rates.NewRefresher(p, rates.NewMemoryStore(), nil)
	cfg := &config.Config{DisplayCurrency: "USD", ReportCacheSize: 8, ReportCacheTTL: time.Hour}
	reports := NewReportService(st, refresher, cfg, nil, nil)

	activity := func() decimal.Decimal {
		t.Helper()
		s, err := reports.CategoryStatus(ctx, cat.ID, 2024, 3)
		if err != nil {
			t.Fatalf("CategoryStatus: %v", err)
		}
		return s.Activity
	}

	if got := activity(); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("activity = %s, want 100", got)
	}

	p.eurPerUSD = "1"
	if _, err := refresher.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if got := activity(); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("activity after refresh = %s, want 50 from the new table", got)
	}
}

func TestNewReportService_WithoutRefresher(t *testing.T) {
	cfg := &config.Config{DisplayCurrency: "USD", ReportCacheSize: 8, ReportCacheTTL: time.Hour}
	reports := NewReportService(memory.New(), nil, cfg, nil, nil)
	if tbl := reports.Rates(context.Background()); !tbl.IsEmpty() {
		t.Errorf("rates = %+v, want empty table", tbl)
	}
}
