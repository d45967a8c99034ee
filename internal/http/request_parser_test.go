package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
	}{
		{
			name:      "both values provided",
			query:     url.Values{"year": {"2023"}, "month": {"12"}},
			wantYear:  2023,
			wantMonth: 12,
		},
		{
			name:      "only year",
			query:     url.Values{"year": {"2022"}},
			wantYear:  2022,
			wantMonth: 3,
		},
		{
			name:      "only month",
			query:     url.Values{"month": {"5"}},
			wantYear:  2024,
			wantMonth: 5,
		},
		{
			name:      "empty query uses now",
			query:     url.Values{},
			wantYear:  2024,
			wantMonth: 3,
		},
		{
			name:      "invalid values are ignored",
			query:     url.Values{"year": {"abc"}, "month": {"x"}},
			wantYear:  2024,
			wantMonth: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseMonthParams(tt.query, now)

			if result.Year != tt.wantYear {
				t.Errorf("Year = %d, want %d", result.Year, tt.wantYear)
			}
			if result.Month != tt.wantMonth {
				t.Errorf("Month = %d, want %d", result.Month, tt.wantMonth)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    error
		badRequest bool
	}{
		{name: "valid", body: `{"name":"Dining","budget":"12,50"}`},
		{name: "empty body", body: "", badRequest: true},
		{name: "unknown field", body: `{"name":"x","color":"red"}`, badRequest: true},
		{name: "malformed", body: `{"name":`, badRequest: true},
		{name: "two objects", body: `{"name":"a"}{"name":"b"}`, badRequest: true},
		{name: "invalid amount", body: `{"name":"x","budget":"12.3.4"}`, wantErr: core.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/categories", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst categoryRequest
			err := decodeJSON(rec, req, &dst)

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("decodeJSON() error = %v, want %v", err, tt.wantErr)
				}
			case tt.badRequest:
				var bre badRequestError
				if !errors.As(err, &bre) {
					t.Errorf("decodeJSON() error = %v, want bad request", err)
				}
			default:
				if err != nil {
					t.Fatalf("decodeJSON() error = %v", err)
				}
				if dst.Name != "Dining" {
					t.Errorf("Name = %q, want Dining", dst.Name)
				}
				if !dst.Budget.value.Equal(decimal.RequireFromString("12.5")) {
					t.Errorf("Budget = %s, want 12.5", dst.Budget.value)
				}
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/groups", strings.NewReader(body))
	rec := httptest.NewRecorder()

	var dst groupRequest
	err := decodeJSON(rec, req, &dst)
	var bre badRequestError
	if !errors.As(err, &bre) {
		t.Fatalf("decodeJSON() error = %v, want bad request", err)
	}
}

func TestAmountInput(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		set     bool
		wantErr bool
	}{
		{raw: `42.5`, want: "42.5", set: true},
		{raw: `"-12,345"`, want: "-12.35", set: true},
		{raw: `"0"`, want: "0", set: true},
		{raw: `null`, want: "0", set: false},
		{raw: `"abc"`, wantErr: true},
		{raw: `""`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var a amountInput
			err := a.UnmarshalJSON([]byte(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidAmount) {
					t.Errorf("UnmarshalJSON(%s) error = %v, want ErrInvalidAmount", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UnmarshalJSON(%s) error = %v", tt.raw, err)
			}
			if a.set != tt.set {
				t.Errorf("set = %v, want %v", a.set, tt.set)
			}
			if !a.value.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("value = %s, want %s", a.value, tt.want)
			}
		})
	}
}

func TestTransactionRequest_ToTransaction(t *testing.T) {
	now := time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)
	amount := func(s string) amountInput {
		return amountInput{value: decimal.RequireFromString(s), set: true}
	}

	t.Run("infers expense from negative amount", func(t *testing.T) {
		req := transactionRequest{Description: " Lunch\x00 ", Amount: amount("-12.50"), Currency: "EUR"}
		tx, err := req.toTransaction(now)
		if err != nil {
			t.Fatalf("toTransaction() error = %v", err)
		}
		if tx.Type != core.Expense {
			t.Errorf("Type = %q, want expense", tx.Type)
		}
		if tx.Description != "Lunch" {
			t.Errorf("Description = %q, want Lunch", tx.Description)
		}
		if got := tx.Date.String(); got != "2024-03-15" {
			t.Errorf("Date = %s, want 2024-03-15", got)
		}
	})

	t.Run("positive amount defaults to income", func(t *testing.T) {
		req := transactionRequest{Description: "Salary", Amount: amount("2000"), Currency: "EUR", Date: "2024-02-28"}
		tx, err := req.toTransaction(now)
		if err != nil {
			t.Fatalf("toTransaction() error = %v", err)
		}
		if tx.Type != core.Income {
			t.Errorf("Type = %q, want income", tx.Type)
		}
		if got := tx.Date.String(); got != "2024-02-28" {
			t.Errorf("Date = %s, want 2024-02-28", got)
		}
	})

	t.Run("explicit type wins", func(t *testing.T) {
		req := transactionRequest{Description: "Groceries", Amount: amount("30"), Type: core.Expense}
		tx, err := req.toTransaction(now)
		if err != nil {
			t.Fatalf("toTransaction() error = %v", err)
		}
		if tx.Type != core.Expense {
			t.Errorf("Type = %q, want expense", tx.Type)
		}
	})

	t.Run("original amount", func(t *testing.T) {
		req := transactionRequest{
			Description:      "Hotel",
			Amount:           amount("-100"),
			Currency:         "EUR",
			OriginalAmount:   amount("110"),
			OriginalCurrency: "USD",
		}
		tx, err := req.toTransaction(now)
		if err != nil {
			t.Fatalf("toTransaction() error = %v", err)
		}
		if tx.OriginalAmount == nil || !tx.OriginalAmount.Equal(decimal.NewFromInt(110)) {
			t.Errorf("OriginalAmount = %v, want 110", tx.OriginalAmount)
		}
	})

	t.Run("missing amount", func(t *testing.T) {
		_, err := transactionRequest{Description: "x"}.toTransaction(now)
		if !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("error = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := transactionRequest{Description: "x", Amount: amount("1"), Date: "15/03/2024"}.toTransaction(now)
		var bre badRequestError
		if !errors.As(err, &bre) {
			t.Errorf("error = %v, want bad request", err)
		}
	})
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Rent ", "Rent"},
		{"Coffee\x07 shop", "Coffee shop"},
		{"line\tbreak", "line\tbreak"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
