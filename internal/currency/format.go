// Package currency formats amounts for display and converts them between
// currencies using a cached exchange-rate table.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placement says on which side of the number the symbol goes.
type Placement string

const (
	Before Placement = "before"
	After  Placement = "after"
)

// Format describes how an amount is rendered.
type Format struct {
	Code              string    `json:"code"`
	Symbol            string    `json:"symbol"`
	Placement         Placement `json:"placement"`
	MinFractionDigits int       `json:"min_fraction_digits"`
	MaxFractionDigits int       `json:"max_fraction_digits"`
	Locale            string    `json:"locale"`
	SpaceBetween      bool      `json:"space_between"`
}

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "CN¥",
	"INR": "₹",
	"RUB": "₽",
	"KRW": "₩",
	"CAD": "CA$",
	"AUD": "A$",
	"BRL": "R$",
	"TRY": "₺",
	"UAH": "₴",
	"PLN": "zł",
}

var zeroDecimal = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
	"ISK": true,
}

// DefaultFormat returns the descriptor used when no explicit format is configured.
// Unknown codes use the code itself as symbol, separated by a space.
func DefaultFormat(code string) Format {
	code = strings.ToUpper(strings.TrimSpace(code))
	f := Format{
		Code:              code,
		Placement:         Before,
		MinFractionDigits: 2,
		MaxFractionDigits: 2,
		Locale:            "en-US",
	}
	if sym, ok := symbols[code]; ok {
		f.Symbol = sym
	} else {
		f.Symbol = code
		f.SpaceBetween = true
	}
	if zeroDecimal[code] {
		f.MinFractionDigits, f.MaxFractionDigits = 0, 0
	}
	return f
}

// With overrides the locale and symbol placement; empty values keep f's.
func (f Format) With(locale string, placement Placement) Format {
	if locale != "" {
		f.Locale = locale
	}
	if placement != "" {
		f.Placement = placement
	}
	return f
}

func (f Format) normalized() Format {
	if f.MinFractionDigits < 0 {
		f.MinFractionDigits = 0
	}
	if f.MaxFractionDigits < f.MinFractionDigits {
		f.MaxFractionDigits = f.MinFractionDigits
	}
	if f.Symbol == "" {
		f.Symbol = f.Code
	}
	if f.Placement != After {
		f.Placement = Before
	}
	return f
}

func (f Format) tag() language.Tag {
	tag, err := language.Parse(f.Locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// Amounts at or above this lose cents in a float64.
var floatExactLimit = decimal.New(1, 15)

// groupDigits formats amounts too large for float64 straight from the
// decimal's digits, using the locale's separators with groups of three.
func groupDigits(p *message.Printer, amount decimal.Decimal, f Format) string {
	group, point := separators(p)

	fixed := amount.StringFixed(int32(f.MaxFractionDigits))
	intPart, frac, _ := strings.Cut(fixed, ".")
	for len(frac) > f.MinFractionDigits && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(group)
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteString(point)
		b.WriteString(frac)
	}
	return b.String()
}

// separators reads the group and decimal separators off a sample rendering.
func separators(p *message.Printer) (group, point string) {
	sample := p.Sprint(number.Decimal(1234567.8, number.MinFractionDigits(1)))
	i1 := strings.IndexRune(sample, '1')
	i2 := strings.IndexRune(sample, '2')
	i7 := strings.IndexRune(sample, '7')
	i8 := strings.IndexRune(sample, '8')
	if i1 < 0 || i2 <= i1+1 || i7 < 0 || i8 <= i7+1 {
		return ",", "."
	}
	return sample[i1+1 : i2], sample[i7+1 : i8]
}

// FormatCurrency renders a float amount; see FormatDecimal.
func FormatCurrency(amount float64, f Format) string {
	return FormatDecimal(decimal.NewFromFloat(amount), f)
}

// FormatDecimal renders amount with locale grouping and the symbol placed per
// the descriptor. Negative amounts carry a leading minus before the symbol.
func FormatDecimal(amount decimal.Decimal, f Format) string {
	f = f.normalized()
	rounded := amount.Round(int32(f.MaxFractionDigits))

	p := message.NewPrinter(f.tag())
	var digits string
	if rounded.Abs().LessThan(floatExactLimit) {
		digits = p.Sprint(number.Decimal(rounded.Abs().InexactFloat64(),
			number.MinFractionDigits(f.MinFractionDigits),
			number.MaxFractionDigits(f.MaxFractionDigits)))
	} else {
		digits = groupDigits(p, rounded.Abs(), f)
	}

	sep := ""
	if f.SpaceBetween {
		sep = " "
	}
	var s string
	if f.Placement == After {
		s = digits + sep + f.Symbol
	} else {
		s = f.Symbol + sep + digits
	}
	if rounded.IsNegative() {
		return "-" + s
	}
	return s
}
