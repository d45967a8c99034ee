// This file implements utilities for parsing and validating request data:
// path ids, month parameters and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"budget/internal/core"
)

const maxBodyBytes = 1 << 20

// badRequestError marks malformed input as opposed to failed validation.
type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return badRequestError{msg: fmt.Sprintf(format, args...)}
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using the
// current date as defaults. Unparseable values fall back to the defaults.
func ParseMonthParams(query url.Values, now time.Time) MonthParams {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			params.Month = m
		}
	}

	return params
}

// pathInt64 reads a numeric path variable.
func pathInt64(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := pathInt64(r, name)
	return int(v), err
}

// queryInt64 reads an optional positive id from the query string.
func queryInt64(q url.Values, name string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, badRequest("invalid %s %q", name, raw)
	}
	return &v, nil
}

// decodeJSON decodes a size-limited JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &maxErr):
			return badRequest("request body too large")
		}
		var amountErr amountError
		if errors.As(err, &amountErr) {
			return amountErr.err
		}
		return badRequest("invalid JSON: %v", err)
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

type amountError struct{ err error }

func (e amountError) Error() string { return e.err.Error() }
func (e amountError) Unwrap() error { return e.err }

// amountInput accepts either a JSON number or a string such as "12,50" and
// parses it with the same rules as user-typed amounts.
type amountInput struct {
	value decimal.Decimal
	set   bool
}

func (a *amountInput) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*a = amountInput{}
		return nil
	}
	if s, err := strconv.Unquote(raw); err == nil {
		raw = s
	}
	d, err := core.ParseDecimal(raw)
	if err != nil {
		return amountError{err: err}
	}
	*a = amountInput{value: d, set: true}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type groupRequest struct {
	Name      string `json:"name"`
	Collapsed bool   `json:"collapsed"`
}

type categoryRequest struct {
	Name    string      `json:"name"`
	Budget  amountInput `json:"budget"`
	GroupID *int64      `json:"group_id"`
}

func (req categoryRequest) toCategory() (core.Category, error) {
	if req.Budget.value.IsNegative() {
		return core.Category{}, core.ErrNegativeBudget
	}
	return core.Category{
		Name:    sanitizeInput(req.Name),
		Budget:  req.Budget.value,
		GroupID: req.GroupID,
	}, nil
}

type budgetRequest struct {
	Amount amountInput `json:"amount"`
}

type reorderRequest struct {
	DraggedID int64 `json:"dragged_id"`
	TargetID  int64 `json:"target_id"`
}

type moveRequest struct {
	GroupID *int64 `json:"group_id"`
}

type accountRequest struct {
	Name           string           `json:"name"`
	Type           core.AccountType `json:"type"`
	Currency       string           `json:"currency"`
	OpeningBalance amountInput      `json:"opening_balance"`
}

func (req accountRequest) toAccount() core.Account {
	return core.Account{
		Name:           sanitizeInput(req.Name),
		Type:           req.Type,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance.value,
	}
}

type transactionRequest struct {
	Description      string               `json:"description"`
	Amount           amountInput          `json:"amount"`
	Currency         string               `json:"currency"`
	CategoryID       int64                `json:"category_id"`
	AccountID        *int64               `json:"account_id"`
	Type             core.TransactionType `json:"type"`
	Date             string               `json:"date"`
	OriginalAmount   amountInput          `json:"original_amount"`
	OriginalCurrency string               `json:"original_currency"`
}

// toTransaction builds the domain value. A missing type is inferred from the
// sign: negative amounts are expenses.
func (req transactionRequest) toTransaction(now time.Time) (core.Transaction, error) {
	if !req.Amount.set {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	date := core.Date{Time: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)}
	if strings.TrimSpace(req.Date) != "" {
		var err error
		if date, err = core.ParseDate(req.Date); err != nil {
			return core.Transaction{}, badRequest("invalid date %q", req.Date)
		}
	}

	typ := req.Type
	if typ == "" {
		typ = core.Income
		if req.Amount.value.IsNegative() {
			typ = core.Expense
		}
	}

	tx := core.Transaction{
		Description:      sanitizeInput(req.Description),
		Amount:           req.Amount.value,
		Currency:         req.Currency,
		CategoryID:       req.CategoryID,
		AccountID:        req.AccountID,
		Type:             typ,
		Date:             date,
		OriginalCurrency: req.OriginalCurrency,
	}
	if req.OriginalAmount.set {
		v := req.OriginalAmount.value
		tx.OriginalAmount = &v
	}
	return tx, nil
}
