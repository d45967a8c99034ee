// Package store declares the persistence ports the services depend on.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// TransactionFilter narrows transaction listings. Zero values mean "any";
// Month is only honored together with Year.
type TransactionFilter struct {
	Year       int
	Month      int
	CategoryID *int64
	AccountID  *int64
}

// Matches reports whether tx passes the filter.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if f.Year != 0 {
		if tx.Date.Year() != f.Year {
			return false
		}
		if f.Month != 0 && tx.Date.Month() != f.Month {
			return false
		}
	}
	if f.CategoryID != nil && tx.CategoryID != *f.CategoryID {
		return false
	}
	if f.AccountID != nil && (tx.AccountID == nil || *tx.AccountID != *f.AccountID) {
		return false
	}
	return true
}

// Ports for persistence adapters.
type (
	GroupStore interface {
		ListGroups(ctx context.Context) ([]core.CategoryGroup, error)
		GetGroup(ctx context.Context, id int64) (core.CategoryGroup, error)
		CreateGroup(ctx context.Context, g core.CategoryGroup) (core.CategoryGroup, error)
		UpdateGroup(ctx context.Context, g core.CategoryGroup) error
		// DeleteGroup removes the group and ungroups its categories.
		DeleteGroup(ctx context.Context, id int64) error
	}

	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, id int64) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		CountTransactions(ctx context.Context, f TransactionFilter) (int, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id int64) error
	}

	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		GetAccount(ctx context.Context, id int64) (core.Account, error)
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		// UpdateAccount persists name, type, currency and opening balance; the
		// running balance is only changed through AdjustBalance and SetBalance.
		UpdateAccount(ctx context.Context, a core.Account) error
		DeleteAccount(ctx context.Context, id int64) error
		AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error
		SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	}

	BudgetStore interface {
		ListAssignments(ctx context.Context, year, month int) ([]core.BudgetAssignment, error)
		SetAssignment(ctx context.Context, a core.BudgetAssignment) error
		DeleteAssignment(ctx context.Context, categoryID int64, year, month int) error
	}

	// Store is the full persistence surface. InTx runs fn atomically: when fn
	// returns an error none of its writes are kept.
	Store interface {
		GroupStore
		CategoryStore
		TransactionStore
		AccountStore
		BudgetStore
		InTx(ctx context.Context, fn func(Store) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
