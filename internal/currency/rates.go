package currency

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateTable holds exchange rates relative to Base: Rates[code] is the number
// of code units per one Base unit.
type RateTable struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetched_at"`
	Source    string                     `json:"source,omitempty"`
}

// NewRateTable copies rates, drops non-positive entries and pins the base at 1.
func NewRateTable(base string, rates map[string]decimal.Decimal, fetchedAt time.Time) RateTable {
	base = strings.ToUpper(base)
	t := RateTable{
		Base:      base,
		Rates:     make(map[string]decimal.Decimal, len(rates)+1),
		FetchedAt: fetchedAt,
	}
	for code, r := range rates {
		if !r.IsPositive() {
			continue
		}
		t.Rates[strings.ToUpper(code)] = r
	}
	if base != "" {
		t.Rates[base] = decimal.NewFromInt(1)
	}
	return t
}

// IsEmpty reports whether the table has no usable rates.
func (t RateTable) IsEmpty() bool {
	return len(t.Rates) == 0
}

// Rate returns the cached rate for code.
func (t RateTable) Rate(code string) (decimal.Decimal, bool) {
	r, ok := t.Rates[code]
	return r, ok
}

// Codes returns the cached currency codes in sorted order.
func (t RateTable) Codes() []string {
	codes := make([]string, 0, len(t.Rates))
	for c := range t.Rates {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Convert converts amount from one currency to another. When either rate is
// missing the amount is returned unchanged with ok=false; callers decide
// whether to surface that.
func (t RateTable) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, bool) {
	if from == to {
		return amount, true
	}
	rf, okFrom := t.Rates[from]
	rt, okTo := t.Rates[to]
	if !okFrom || !okTo {
		return amount, false
	}
	return amount.Mul(rt).Div(rf), true
}

// Age returns how long ago the table was fetched relative to now.
func (t RateTable) Age(now time.Time) time.Duration {
	if t.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(t.FetchedAt)
}
