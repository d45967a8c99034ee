package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"budget/internal/budget"
)

type JSON struct{}

func (JSON) ContentType() string { return "application/json" }
func (JSON) Extension() string   { return "json" }

func (JSON) Encode(w io.Writer, rep budget.MonthReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

type YAML struct{}

func (YAML) ContentType() string { return "application/yaml" }
func (YAML) Extension() string   { return "yaml" }

func (YAML) Encode(w io.Writer, rep budget.MonthReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// CSV writes one line per category followed by the summary totals.
type CSV struct{}

func (CSV) ContentType() string { return "text/csv" }
func (CSV) Extension() string   { return "csv" }

func (CSV) Encode(w io.Writer, rep budget.MonthReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range Rows(rep) {
		rec := []string{
			r.Group,
			r.Category,
			r.Budget.StringFixed(2),
			r.Activity.StringFixed(2),
			r.Remaining.StringFixed(2),
			r.PercentUsed.StringFixed(2),
			string(r.Tier),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	for _, s := range summary(rep) {
		if err := cw.Write([]string{"", s.label, s.value.StringFixed(2), "", "", "", ""}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"", "unconverted", strconv.Itoa(rep.Unconverted), "", "", "", ""}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

const (
	categoriesSheet = "Categories"
	summarySheet    = "Summary"
)

// XLSX writes a workbook with a category sheet and a summary sheet.
type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (XLSX) Extension() string { return "xlsx" }

func (XLSX) Encode(w io.Writer, rep budget.MonthReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", categoriesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(categoriesSheet, "A1", &head); err != nil {
		return err
	}
	for i, r := range Rows(rep) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.Group,
			r.Category,
			r.Budget.InexactFloat64(),
			r.Activity.InexactFloat64(),
			r.Remaining.InexactFloat64(),
			r.PercentUsed.InexactFloat64(),
			string(r.Tier),
		}
		if err := f.SetSheetRow(categoriesSheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	meta := [][]any{
		{"period", fmt.Sprintf("%04d-%02d", rep.Year, rep.Month)},
		{"currency", rep.Currency},
	}
	for _, s := range summary(rep) {
		meta = append(meta, []any{s.label, s.value.InexactFloat64()})
	}
	meta = append(meta, []any{"unconverted", rep.Unconverted})
	for i, row := range meta {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
