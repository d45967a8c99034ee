package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"budget/internal/budget"
	"budget/internal/core"
)

func sampleReport() budget.MonthReport {
	gid := int64(1)
	return budget.BuildMonthReport(budget.ReportInput{
		Year:     2024,
		Month:    3,
		Currency: "USD",
		Groups:   []core.CategoryGroup{{ID: gid, Name: "Bills"}},
		Categories: []core.Category{
			{ID: 1, Name: "Rent", Budget: decimal.NewFromInt(1000), GroupID: &gid},
			{ID: 2, Name: "Fun", Budget: decimal.NewFromInt(50), SortOrder: 1},
		},
		Transactions: []core.Transaction{
			{ID: 1, Description: "March rent", Amount: decimal.NewFromInt(1000), Currency: "USD", CategoryID: 1, Type: core.Expense, Date: core.NewDate(2024, 3, 1)},
			{ID: 2, Description: "Cinema", Amount: decimal.NewFromInt(20), Currency: "USD", CategoryID: 2, Type: core.Expense, Date: core.NewDate(2024, 3, 2)},
		},
		Now: time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC),
	})
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		name string
		ext  string
	}{
		{"", "json"},
		{"JSON", "json"},
		{"csv", "csv"},
		{"yml", "yaml"},
		{"xlsx", "xlsx"},
	}
	for _, tt := range tests {
		enc, err := ForFormat(tt.name)
		if err != nil {
			t.Fatalf("ForFormat(%q): %v", tt.name, err)
		}
		if enc.Extension() != tt.ext {
			t.Errorf("ForFormat(%q) ext = %s, want %s", tt.name, enc.Extension(), tt.ext)
		}
	}
	if _, err := ForFormat("pdf"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("pdf err = %v", err)
	}
	if got := Filename(sampleReport(), CSV{}); got != "budget-2024-03-USD.csv" {
		t.Errorf("Filename = %s", got)
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleReport())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Group != "Bills" || rows[0].Category != "Rent" || rows[0].Tier != budget.Warning {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[1].Group != budget.UngroupedName || rows[1].Category != "Fun" {
		t.Errorf("second row = %+v", rows[1])
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := (CSV{}).Encode(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if strings.Join(recs[0], ",") != strings.Join(header, ",") {
		t.Errorf("header = %v", recs[0])
	}
	want := []string{"Bills", "Rent", "1000.00", "1000.00", "0.00", "100.00", "warning"}
	if strings.Join(recs[1], ",") != strings.Join(want, ",") {
		t.Errorf("rent row = %v, want %v", recs[1], want)
	}
	last := recs[len(recs)-1]
	if last[1] != "unconverted" || last[2] != "0" {
		t.Errorf("last row = %v", last)
	}
}

func TestJSONAndYAML(t *testing.T) {
	rep := sampleReport()

	var jbuf bytes.Buffer
	if err := (JSON{}).Encode(&jbuf, rep); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(jbuf.Bytes(), &decoded); err != nil {
		t.Fatalf("json: %v", err)
	}
	if decoded["currency"] != "USD" {
		t.Errorf("json currency = %v", decoded["currency"])
	}

	var ybuf bytes.Buffer
	if err := (YAML{}).Encode(&ybuf, rep); err != nil {
		t.Fatal(err)
	}
	var y map[string]any
	if err := yaml.Unmarshal(ybuf.Bytes(), &y); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if y["year"] != 2024 || y["currency"] != "USD" {
		t.Errorf("yaml = %v", y)
	}
	if !strings.Contains(ybuf.String(), "tier: warning") {
		t.Errorf("yaml missing inline status:\n%s", ybuf.String())
	}
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := (XLSX{}).Encode(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(categoriesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("category rows = %d, want 3", len(rows))
	}
	if rows[1][1] != "Rent" || rows[2][6] != "on-track" {
		t.Errorf("rows = %v", rows)
	}

	sum, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatal(err)
	}
	if sum[0][1] != "2024-03" || sum[1][1] != "USD" {
		t.Errorf("summary = %v", sum)
	}
}
