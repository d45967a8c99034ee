// Package export encodes month reports as JSON, CSV, YAML or XLSX.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/budget"
)

var ErrUnknownFormat = errors.New("unknown export format")

// Encoder writes a report in one file format.
type Encoder interface {
	ContentType() string
	Extension() string
	Encode(w io.Writer, rep budget.MonthReport) error
}

// ForFormat returns the encoder for a format name; empty means JSON.
func ForFormat(name string) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON{}, nil
	case "csv":
		return CSV{}, nil
	case "yaml", "yml":
		return YAML{}, nil
	case "xlsx", "excel":
		return XLSX{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Filename suggests a download name such as budget-2024-03-USD.csv.
func Filename(rep budget.MonthReport, enc Encoder) string {
	return fmt.Sprintf("budget-%04d-%02d-%s.%s", rep.Year, rep.Month, rep.Currency, enc.Extension())
}

// Row is one flattened category line shared by the tabular encoders.
type Row struct {
	Group       string
	Category    string
	Budget      decimal.Decimal
	Activity    decimal.Decimal
	Remaining   decimal.Decimal
	PercentUsed decimal.Decimal
	Tier        budget.Tier
}

var header = []string{"group", "category", "budget", "activity", "remaining", "percent_used", "tier"}

// Rows flattens the report in display order.
func Rows(rep budget.MonthReport) []Row {
	var rows []Row
	for _, g := range rep.Groups {
		for _, c := range g.Categories {
			rows = append(rows, Row{
				Group:       g.Name,
				Category:    c.Name,
				Budget:      c.Budget,
				Activity:    c.Activity,
				Remaining:   c.Remaining,
				PercentUsed: c.PercentUsed,
				Tier:        c.Tier,
			})
		}
	}
	return rows
}

type summaryLine struct {
	label string
	value decimal.Decimal
}

func summary(rep budget.MonthReport) []summaryLine {
	return []summaryLine{
		{"total_budget", rep.TotalBudget},
		{"total_activity", rep.TotalActivity},
		{"total_remaining", rep.TotalRemaining},
		{"income", rep.Income},
		{"expenses", rep.Expenses},
		{"net", rep.Net},
		{"uncategorized", rep.Uncategorized},
	}
}
