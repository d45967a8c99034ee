// Package budget derives per-category activity, remaining amounts and
// severity tiers, and assembles them into month reports.
package budget

import (
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Tier is the severity of a category's budget position.
type Tier string

const (
	OnTrack    Tier = "on-track"
	Warning    Tier = "warning"
	OverBudget Tier = "over-budget"
)

var (
	hundred          = decimal.NewFromInt(100)
	warningThreshold = decimal.RequireFromString("0.2")
)

// Severity orders tiers so transitions can be compared.
func (t Tier) Severity() int {
	switch t {
	case Warning:
		return 1
	case OverBudget:
		return 2
	default:
		return 0
	}
}

// Converter converts an amount between currencies. ok=false means the amount
// was returned unchanged because a rate was missing.
type Converter interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, bool)
}

// Status is the derived budget position of one category for one month.
type Status struct {
	Budget      decimal.Decimal `json:"budget" yaml:"budget"`
	Activity    decimal.Decimal `json:"activity" yaml:"activity"`
	Remaining   decimal.Decimal `json:"remaining" yaml:"remaining"`
	PercentUsed decimal.Decimal `json:"percent_used" yaml:"percent_used"`
	Tier        Tier            `json:"tier" yaml:"tier"`
}

// DeriveStatus computes remaining, percent used and tier from a budget and its activity.
func DeriveStatus(budget, activity decimal.Decimal) Status {
	remaining := budget.Sub(activity)

	percent := decimal.Zero
	if budget.IsPositive() {
		percent = activity.Div(budget).Mul(hundred).Round(2)
		if percent.GreaterThan(hundred) {
			percent = hundred
		}
	}

	tier := OnTrack
	switch {
	case remaining.IsNegative():
		tier = OverBudget
	case remaining.LessThan(budget.Mul(warningThreshold)):
		tier = Warning
	}

	return Status{
		Budget:      budget,
		Activity:    activity,
		Remaining:   remaining,
		PercentUsed: percent,
		Tier:        tier,
	}
}

// ActivityResult is the expense total of a category plus the number of
// entries whose currency could not be converted.
type ActivityResult struct {
	Total       decimal.Decimal
	Unconverted int
}

// Activity sums the expense magnitudes attributed to category in the given
// month, normalized to the display currency.
func Activity(category core.Category, year, month int, txs []core.Transaction, conv Converter, display string) ActivityResult {
	res := ActivityResult{Total: decimal.Zero}
	for _, tx := range txs {
		if tx.CategoryID != category.ID || tx.Type != core.Expense || !tx.Date.InMonth(year, month) {
			continue
		}
		amount, ok := normalize(tx, conv, display)
		if !ok {
			res.Unconverted++
		}
		res.Total = res.Total.Add(amount)
	}
	return res
}

// normalize expresses the transaction magnitude in display, preferring an
// amount already recorded in that currency over a conversion.
func normalize(tx core.Transaction, conv Converter, display string) (decimal.Decimal, bool) {
	if amount, ok := tx.AmountIn(display); ok {
		return amount, true
	}
	if conv == nil {
		return tx.Magnitude(), false
	}
	return conv.Convert(tx.Magnitude(), tx.Currency, display)
}
