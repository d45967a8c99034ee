package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/store"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), Config{
		Dialect:    SQLite,
		SQLitePath: filepath.Join(t.TempDir(), "data", "budget.db"),
	}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{SQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{Postgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{Postgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		if got := tt.dialect.rebind(tt.in); got != tt.want {
			t.Errorf("%s rebind = %q, want %q", tt.dialect, got, tt.want)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := Open(context.Background(), Config{Dialect: SQLite}, nil); err == nil {
		t.Error("expected error for missing sqlite path")
	}
	if _, err := Open(context.Background(), Config{Dialect: "oracle"}, nil); err == nil {
		t.Error("expected error for unknown dialect")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	for i := 0; i < 2; i++ {
		repo, err := Open(context.Background(), Config{Dialect: SQLite, SQLitePath: path}, nil)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		repo.Close()
	}
}

func TestGroupsAndCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	g, err := repo.CreateGroup(ctx, core.CategoryGroup{Name: "Bills", SortOrder: 1})
	if err != nil {
		t.Fatal(err)
	}
	g2, _ := repo.CreateGroup(ctx, core.CategoryGroup{Name: "Fun", SortOrder: 0, Collapsed: true})

	groups, err := repo.ListGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].Name != "Fun" || !groups[0].Collapsed {
		t.Fatalf("groups = %+v", groups)
	}

	c, err := repo.CreateCategory(ctx, core.Category{Name: "Rent", Budget: dec("1200.50"), GroupID: &g.ID})
	if err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetCategory(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Budget.Equal(dec("1200.5")) || got.GroupID == nil || *got.GroupID != g.ID {
		t.Errorf("category = %+v", got)
	}

	got.GroupID = &g2.ID
	got.SortOrder = 3
	if err := repo.UpdateCategory(ctx, got); err != nil {
		t.Fatal(err)
	}
	missing := int64(999)
	got.GroupID = &missing
	if err := repo.UpdateCategory(ctx, got); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteGroup(ctx, g2.ID); err != nil {
		t.Fatal(err)
	}
	after, _ := repo.GetCategory(ctx, c.ID)
	if after.GroupID != nil {
		t.Errorf("category should be ungrouped after group delete, got %v", *after.GroupID)
	}
	if err := repo.DeleteGroup(ctx, g2.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetCategory(ctx, 12345); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTransactionsAndGuards(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	cat, _ := repo.CreateCategory(ctx, core.Category{Name: "Food", Budget: dec("300")})
	acct, _ := repo.CreateAccount(ctx, core.Account{Name: "Checking", Type: core.Checking, Currency: "USD",
		OpeningBalance: dec("100"), Balance: dec("100")})

	orig := dec("9.99")
	tx, err := repo.CreateTransaction(ctx, core.Transaction{
		Description: "groceries", Amount: dec("12.34"), Currency: "EUR", CategoryID: cat.ID,
		AccountID: &acct.ID, Type: core.Expense, Date: core.NewDate(2025, 3, 31),
		OriginalAmount: &orig, OriginalCurrency: "USD",
	})
	if err != nil {
		t.Fatal(err)
	}
	repo.CreateTransaction(ctx, core.Transaction{
		Description: "salary", Amount: dec("1000"), Currency: "USD", Type: core.Income,
		Date: core.NewDate(2025, 4, 1),
	})

	march, err := repo.ListTransactions(ctx, store.TransactionFilter{Year: 2025, Month: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(march) != 1 {
		t.Fatalf("march = %d transactions, want 1", len(march))
	}
	m := march[0]
	if m.ID != tx.ID || !m.Amount.Equal(dec("12.34")) || m.Date.String() != "2025-03-31" {
		t.Errorf("transaction = %+v", m)
	}
	if m.OriginalAmount == nil || !m.OriginalAmount.Equal(orig) || m.OriginalCurrency != "USD" {
		t.Errorf("original = %v %s", m.OriginalAmount, m.OriginalCurrency)
	}
	if m.AccountID == nil || *m.AccountID != acct.ID {
		t.Errorf("account = %v", m.AccountID)
	}

	year, _ := repo.CountTransactions(ctx, store.TransactionFilter{Year: 2025})
	if year != 2 {
		t.Errorf("year count = %d, want 2", year)
	}
	april, _ := repo.ListTransactions(ctx, store.TransactionFilter{Year: 2025, Month: 4})
	if len(april) != 1 || april[0].CategoryID != 0 || april[0].AccountID != nil {
		t.Errorf("april = %+v", april)
	}

	if err := repo.DeleteCategory(ctx, cat.ID); !errors.Is(err, core.ErrCategoryInUse) {
		t.Errorf("err = %v, want ErrCategoryInUse", err)
	}
	if err := repo.DeleteAccount(ctx, acct.ID); !errors.Is(err, core.ErrAccountInUse) {
		t.Errorf("err = %v, want ErrAccountInUse", err)
	}

	m.Description = "market"
	m.OriginalAmount = nil
	m.OriginalCurrency = ""
	if err := repo.UpdateTransaction(ctx, m); err != nil {
		t.Fatal(err)
	}
	updated, _ := repo.GetTransaction(ctx, m.ID)
	if updated.Description != "market" || updated.OriginalAmount != nil {
		t.Errorf("updated = %+v", updated)
	}

	if err := repo.DeleteTransaction(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteCategory(ctx, cat.ID); err != nil {
		t.Errorf("delete after clearing transactions: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBalancesAndTx(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acct, _ := repo.CreateAccount(ctx, core.Account{Name: "Cash", Type: core.Cash, Currency: "USD"})

	if err := repo.AdjustBalance(ctx, acct.ID, dec("0.1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.AdjustBalance(ctx, acct.ID, dec("0.2")); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetAccount(ctx, acct.ID)
	if !got.Balance.Equal(dec("0.3")) {
		t.Errorf("balance = %s, want exactly 0.3", got.Balance)
	}

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(s store.Store) error {
		if err := s.AdjustBalance(ctx, acct.ID, dec("50")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	got, _ = repo.GetAccount(ctx, acct.ID)
	if !got.Balance.Equal(dec("0.3")) {
		t.Errorf("balance after rollback = %s", got.Balance)
	}

	got.Name = "Wallet"
	got.Balance = dec("999")
	if err := repo.UpdateAccount(ctx, got); err != nil {
		t.Fatal(err)
	}
	again, _ := repo.GetAccount(ctx, acct.ID)
	if again.Name != "Wallet" || !again.Balance.Equal(dec("0.3")) {
		t.Errorf("UpdateAccount must not touch balance: %+v", again)
	}

	if err := repo.AdjustBalance(ctx, 404, dec("1")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAssignments(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cat, _ := repo.CreateCategory(ctx, core.Category{Name: "Food"})

	for _, amount := range []string{"100", "250.75"} {
		if err := repo.SetAssignment(ctx, core.BudgetAssignment{CategoryID: cat.ID, Year: 2025, Month: 6, Amount: dec(amount)}); err != nil {
			t.Fatal(err)
		}
	}
	as, err := repo.ListAssignments(ctx, 2025, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(as) != 1 || !as[0].Amount.Equal(dec("250.75")) {
		t.Errorf("assignments = %+v", as)
	}
	if err := repo.SetAssignment(ctx, core.BudgetAssignment{CategoryID: 77, Year: 2025, Month: 6}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteAssignment(ctx, cat.ID, 2025, 6); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteAssignment(ctx, cat.ID, 2025, 6); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestPostgresRepository runs against a live server when POSTGRES_TEST_URL is set.
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_URL")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()
	repo, err := Open(ctx, Config{Dialect: Postgres, PostgresDSN: dsn}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer repo.Close()

	if _, err := repo.db.Exec("TRUNCATE TABLE budget_assignments, transactions, accounts, categories, category_groups RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	acct, err := repo.CreateAccount(ctx, core.Account{Name: "Checking", Type: core.Checking, Currency: "USD"})
	if err != nil {
		t.Fatal(err)
	}
	err = repo.InTx(ctx, func(s store.Store) error {
		return s.AdjustBalance(ctx, acct.ID, dec("12.34"))
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetAccount(ctx, acct.ID)
	if !got.Balance.Equal(dec("12.34")) || got.Currency != "USD" {
		t.Errorf("account = %+v", got)
	}
	tx, err := repo.CreateTransaction(ctx, core.Transaction{Description: "x", Amount: dec("1"), Currency: "USD",
		Type: core.Expense, Date: core.NewDate(2025, 2, 28), AccountID: &acct.ID})
	if err != nil {
		t.Fatal(err)
	}
	fetched, err := repo.GetTransaction(ctx, tx.ID)
	if err != nil || fetched.Date.String() != "2025-02-28" {
		t.Errorf("fetched = %+v, %v", fetched, err)
	}
}
