package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/store"
)

type assignmentKey struct {
	categoryID  int64
	year, month int
}

// state holds the data without any locking; Store serializes access to it.
type state struct {
	groups      map[int64]core.CategoryGroup
	categories  map[int64]core.Category
	txs         map[int64]core.Transaction
	accounts    map[int64]core.Account
	assignments map[assignmentKey]core.BudgetAssignment
	nextID      int64
}

func newState() *state {
	return &state{
		groups:      make(map[int64]core.CategoryGroup),
		categories:  make(map[int64]core.Category),
		txs:         make(map[int64]core.Transaction),
		accounts:    make(map[int64]core.Account),
		assignments: make(map[assignmentKey]core.BudgetAssignment),
	}
}

func (s *state) clone() *state {
	return &state{
		groups:      maps.Clone(s.groups),
		categories:  maps.Clone(s.categories),
		txs:         maps.Clone(s.txs),
		accounts:    maps.Clone(s.accounts),
		assignments: maps.Clone(s.assignments),
		nextID:      s.nextID,
	}
}

func (s *state) id(requested int64) int64 {
	if requested > s.nextID {
		s.nextID = requested
		return requested
	}
	s.nextID++
	return s.nextID
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
}

func sortedValues[V any](m map[int64]V, less func(a, b V) bool) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Groups

func (s *state) ListGroups(_ context.Context) ([]core.CategoryGroup, error) {
	return sortedValues(s.groups, func(a, b core.CategoryGroup) bool {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	}), nil
}

func (s *state) GetGroup(_ context.Context, id int64) (core.CategoryGroup, error) {
	g, ok := s.groups[id]
	if !ok {
		return core.CategoryGroup{}, notFound("group", id)
	}
	return g, nil
}

func (s *state) CreateGroup(_ context.Context, g core.CategoryGroup) (core.CategoryGroup, error) {
	g.ID = s.id(g.ID)
	s.groups[g.ID] = g
	return g, nil
}

func (s *state) UpdateGroup(_ context.Context, g core.CategoryGroup) error {
	if _, ok := s.groups[g.ID]; !ok {
		return notFound("group", g.ID)
	}
	s.groups[g.ID] = g
	return nil
}

func (s *state) DeleteGroup(_ context.Context, id int64) error {
	if _, ok := s.groups[id]; !ok {
		return notFound("group", id)
	}
	delete(s.groups, id)
	for cid, c := range s.categories {
		if c.GroupID != nil && *c.GroupID == id {
			c.GroupID = nil
			s.categories[cid] = c
		}
	}
	return nil
}

// Categories

func (s *state) ListCategories(_ context.Context) ([]core.Category, error) {
	return sortedValues(s.categories, func(a, b core.Category) bool {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	}), nil
}

func (s *state) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, notFound("category", id)
	}
	return c, nil
}

func (s *state) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if c.GroupID != nil {
		if _, ok := s.groups[*c.GroupID]; !ok {
			return core.Category{}, notFound("group", *c.GroupID)
		}
	}
	c.ID = s.id(c.ID)
	s.categories[c.ID] = c
	return c, nil
}

func (s *state) UpdateCategory(_ context.Context, c core.Category) error {
	if _, ok := s.categories[c.ID]; !ok {
		return notFound("category", c.ID)
	}
	if c.GroupID != nil {
		if _, ok := s.groups[*c.GroupID]; !ok {
			return notFound("group", *c.GroupID)
		}
	}
	s.categories[c.ID] = c
	return nil
}

func (s *state) DeleteCategory(_ context.Context, id int64) error {
	if _, ok := s.categories[id]; !ok {
		return notFound("category", id)
	}
	for _, tx := range s.txs {
		if tx.CategoryID == id {
			return core.ErrCategoryInUse
		}
	}
	delete(s.categories, id)
	for k := range s.assignments {
		if k.categoryID == id {
			delete(s.assignments, k)
		}
	}
	return nil
}

// Transactions

func (s *state) ListTransactions(_ context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0)
	for _, tx := range s.txs {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) CountTransactions(_ context.Context, f store.TransactionFilter) (int, error) {
	n := 0
	for _, tx := range s.txs {
		if f.Matches(tx) {
			n++
		}
	}
	return n, nil
}

func (s *state) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, notFound("transaction", id)
	}
	return tx, nil
}

func (s *state) checkTransactionRefs(tx core.Transaction) error {
	if tx.CategoryID != 0 {
		if _, ok := s.categories[tx.CategoryID]; !ok {
			return notFound("category", tx.CategoryID)
		}
	}
	if tx.AccountID != nil {
		if _, ok := s.accounts[*tx.AccountID]; !ok {
			return notFound("account", *tx.AccountID)
		}
	}
	return nil
}

func (s *state) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := s.checkTransactionRefs(tx); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = s.id(tx.ID)
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *state) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	if _, ok := s.txs[tx.ID]; !ok {
		return notFound("transaction", tx.ID)
	}
	if err := s.checkTransactionRefs(tx); err != nil {
		return err
	}
	s.txs[tx.ID] = tx
	return nil
}

func (s *state) DeleteTransaction(_ context.Context, id int64) error {
	if _, ok := s.txs[id]; !ok {
		return notFound("transaction", id)
	}
	delete(s.txs, id)
	return nil
}

// Accounts

func (s *state) ListAccounts(_ context.Context) ([]core.Account, error) {
	return sortedValues(s.accounts, func(a, b core.Account) bool { return a.ID < b.ID }), nil
}

func (s *state) GetAccount(_ context.Context, id int64) (core.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, notFound("account", id)
	}
	return a, nil
}

func (s *state) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	a.ID = s.id(a.ID)
	s.accounts[a.ID] = a
	return a, nil
}

func (s *state) UpdateAccount(_ context.Context, a core.Account) error {
	cur, ok := s.accounts[a.ID]
	if !ok {
		return notFound("account", a.ID)
	}
	a.Balance = cur.Balance
	s.accounts[a.ID] = a
	return nil
}

func (s *state) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := s.accounts[id]; !ok {
		return notFound("account", id)
	}
	for _, tx := range s.txs {
		if tx.AccountID != nil && *tx.AccountID == id {
			return core.ErrAccountInUse
		}
	}
	delete(s.accounts, id)
	return nil
}

func (s *state) AdjustBalance(_ context.Context, id int64, delta decimal.Decimal) error {
	a, ok := s.accounts[id]
	if !ok {
		return notFound("account", id)
	}
	a.Balance = a.Balance.Add(delta)
	s.accounts[id] = a
	return nil
}

func (s *state) SetBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	a, ok := s.accounts[id]
	if !ok {
		return notFound("account", id)
	}
	a.Balance = balance
	s.accounts[id] = a
	return nil
}

// Budget assignments

func (s *state) ListAssignments(_ context.Context, year, month int) ([]core.BudgetAssignment, error) {
	out := make([]core.BudgetAssignment, 0)
	for k, a := range s.assignments {
		if k.year == year && k.month == month {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (s *state) SetAssignment(_ context.Context, a core.BudgetAssignment) error {
	if _, ok := s.categories[a.CategoryID]; !ok {
		return notFound("category", a.CategoryID)
	}
	s.assignments[assignmentKey{a.CategoryID, a.Year, a.Month}] = a
	return nil
}

func (s *state) DeleteAssignment(_ context.Context, categoryID int64, year, month int) error {
	k := assignmentKey{categoryID, year, month}
	if _, ok := s.assignments[k]; !ok {
		return fmt.Errorf("assignment %d %d-%02d: %w", categoryID, year, month, core.ErrNotFound)
	}
	delete(s.assignments, k)
	return nil
}
