package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	Credit     AccountType = "credit"
	Cash       AccountType = "cash"
	Investment AccountType = "investment"
)

type (
	TransactionType string
	AccountType     string

	Date struct {
		time.Time
	}

	CategoryGroup struct {
		ID        int64  `json:"id" yaml:"id"`
		Name      string `json:"name" yaml:"name"`
		Collapsed bool   `json:"collapsed" yaml:"collapsed"`
		SortOrder int    `json:"sort_order" yaml:"sort_order"`
	}

	Category struct {
		ID        int64           `json:"id" yaml:"id"`
		Name      string          `json:"name" yaml:"name"`
		Budget    decimal.Decimal `json:"budget" yaml:"budget"` // default monthly budget
		GroupID   *int64          `json:"group_id,omitempty" yaml:"group_id,omitempty"`
		SortOrder int             `json:"sort_order" yaml:"sort_order"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		CategoryID  int64           `json:"category_id,omitempty"` // 0 means uncategorized
		AccountID   *int64          `json:"account_id,omitempty"`
		Type        TransactionType `json:"type"`
		Date        Date            `json:"date"`

		// Cross-currency entries keep the amount as it was entered.
		OriginalAmount   *decimal.Decimal `json:"original_amount,omitempty"`
		OriginalCurrency string           `json:"original_currency,omitempty"`
	}

	Account struct {
		ID             int64           `json:"id" yaml:"id"`
		Name           string          `json:"name" yaml:"name"`
		Type           AccountType     `json:"type" yaml:"type"`
		Balance        decimal.Decimal `json:"balance" yaml:"balance"`
		OpeningBalance decimal.Decimal `json:"opening_balance" yaml:"opening_balance"`
		Currency       string          `json:"currency" yaml:"currency"`
	}

	// BudgetAssignment overrides a category's default budget for one month.
	BudgetAssignment struct {
		CategoryID int64           `json:"category_id"`
		Year       int             `json:"year"`
		Month      int             `json:"month"`
		Amount     decimal.Decimal `json:"amount"`
	}
)

var (
	ErrNotFound          = errors.New("not found")
	ErrCategoryInUse     = errors.New("category is referenced by transactions")
	ErrAccountInUse      = errors.New("account is referenced by transactions")
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNegativeBudget    = errors.New("budget cannot be negative")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyDescription  = errors.New("empty description")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidAccount    = errors.New("invalid account type")
	ErrInvalidCurrency   = errors.New("invalid currency code")
	ErrCurrencyMismatch  = errors.New("transaction currency does not match account currency")
	ErrMissingOriginal   = errors.New("original amount and currency must be set together")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// InMonth reports whether the date falls in the given year and month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && d.Month() == month
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	parsed, err := ParseDate(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ValidateCurrency checks for a three-letter upper-case ISO 4217 style code.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

func (g CategoryGroup) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Budget.IsNegative() {
		return ErrNegativeBudget
	}
	return nil
}

// InGroup reports whether the category belongs to the given group; nil means ungrouped.
func (c Category) InGroup(groupID *int64) bool {
	if c.GroupID == nil || groupID == nil {
		return c.GroupID == nil && groupID == nil
	}
	return *c.GroupID == *groupID
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLength
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := ValidateCurrency(t.Currency); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if (t.OriginalAmount == nil) != (t.OriginalCurrency == "") {
		return ErrMissingOriginal
	}
	if t.OriginalCurrency != "" {
		if err := ValidateCurrency(t.OriginalCurrency); err != nil {
			return fmt.Errorf("original currency: %w", err)
		}
	}
	return nil
}

// Magnitude returns the absolute amount; the sign of a transaction is carried by its type.
func (t Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

// AmountIn returns the transaction amount expressed in the given currency when
// either the booked or the original amount is in that currency.
func (t Transaction) AmountIn(code string) (decimal.Decimal, bool) {
	if t.Currency == code {
		return t.Amount.Abs(), true
	}
	if t.OriginalAmount != nil && t.OriginalCurrency == code {
		return t.OriginalAmount.Abs(), true
	}
	return decimal.Zero, false
}

// BalanceDelta is the change this transaction applies to an account held in accountCurrency.
func (t Transaction) BalanceDelta(accountCurrency string) (decimal.Decimal, error) {
	amount, ok := t.AmountIn(accountCurrency)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, t.Currency, accountCurrency)
	}
	if t.Type == Expense {
		return amount.Neg(), nil
	}
	return amount, nil
}

func (t AccountType) Valid() bool {
	switch t {
	case Checking, Savings, Credit, Cash, Investment:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return ErrInvalidAccount
	}
	return ValidateCurrency(a.Currency)
}

func (b BudgetAssignment) Validate() error {
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.Year < 1 {
		return errors.New("invalid year")
	}
	if b.Amount.IsNegative() {
		return ErrNegativeBudget
	}
	return nil
}
