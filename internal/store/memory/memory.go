// Package memory is an in-process store.Store used for development and tests.
// Data can be seeded from a YAML file and is lost on exit.
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"budget/internal/core"
	"budget/internal/store"
)

// Store guards a state with a mutex.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// Seed is the YAML layout accepted by NewFromFile.
type Seed struct {
	Groups     []core.CategoryGroup `yaml:"groups"`
	Categories []core.Category      `yaml:"categories"`
	Accounts   []core.Account       `yaml:"accounts"`
}

// NewFromFile loads a seed file. A missing path yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := s.Load(seed); err != nil {
		return nil, fmt.Errorf("load seed file %s: %w", path, err)
	}
	return s, nil
}

// Load inserts the seed's records, validating each one.
func (s *Store) Load(seed Seed) error {
	return s.InTx(context.Background(), func(tx store.Store) error {
		ctx := context.Background()
		for _, g := range seed.Groups {
			if err := g.Validate(); err != nil {
				return fmt.Errorf("group %q: %w", g.Name, err)
			}
			if _, err := tx.CreateGroup(ctx, g); err != nil {
				return err
			}
		}
		for _, c := range seed.Categories {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("category %q: %w", c.Name, err)
			}
			if _, err := tx.CreateCategory(ctx, c); err != nil {
				return err
			}
		}
		for _, a := range seed.Accounts {
			if err := a.Validate(); err != nil {
				return fmt.Errorf("account %q: %w", a.Name, err)
			}
			a.Balance = a.OpeningBalance
			if _, err := tx.CreateAccount(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

// InTx runs fn against a snapshot-backed view; on error the snapshot is restored.
func (s *Store) InTx(ctx context.Context, fn func(store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(txStore{s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }

func (s *Store) ListGroups(ctx context.Context) ([]core.CategoryGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListGroups(ctx)
}

func (s *Store) GetGroup(ctx context.Context, id int64) (core.CategoryGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetGroup(ctx, id)
}

func (s *Store) CreateGroup(ctx context.Context, g core.CategoryGroup) (core.CategoryGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateGroup(ctx, g)
}

func (s *Store) UpdateGroup(ctx context.Context, g core.CategoryGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateGroup(ctx, g)
}

func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteGroup(ctx, id)
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListCategories(ctx)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetCategory(ctx, id)
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateCategory(ctx, c)
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateCategory(ctx, c)
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteCategory(ctx, id)
}

func (s *Store) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListTransactions(ctx, f)
}

func (s *Store) CountTransactions(ctx context.Context, f store.TransactionFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.CountTransactions(ctx, f)
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetTransaction(ctx, id)
}

func (s *Store) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateTransaction(ctx, tx)
}

func (s *Store) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateTransaction(ctx, tx)
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteTransaction(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListAccounts(ctx)
}

func (s *Store) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetAccount(ctx, id)
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateAccount(ctx, a)
}

func (s *Store) UpdateAccount(ctx context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateAccount(ctx, a)
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteAccount(ctx, id)
}

func (s *Store) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.AdjustBalance(ctx, id, delta)
}

func (s *Store) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetBalance(ctx, id, balance)
}

func (s *Store) ListAssignments(ctx context.Context, year, month int) ([]core.BudgetAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListAssignments(ctx, year, month)
}

func (s *Store) SetAssignment(ctx context.Context, a core.BudgetAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetAssignment(ctx, a)
}

func (s *Store) DeleteAssignment(ctx context.Context, categoryID int64, year, month int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteAssignment(ctx, categoryID, year, month)
}

// txStore exposes the unlocked state to an InTx callback; the outer lock is held.
type txStore struct {
	*state
}

func (t txStore) InTx(_ context.Context, fn func(store.Store) error) error { return fn(t) }
func (t txStore) Ping(ctx context.Context) error                           { return ctx.Err() }
func (t txStore) Close() error                                             { return nil }
