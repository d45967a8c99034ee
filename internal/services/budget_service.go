package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/ordering"
	"budget/internal/store"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishEvent(ctx context.Context, e amqp.Event) error
}

// ReportInvalidator drops cached reports after writes.
type ReportInvalidator interface {
	Invalidate(year, month int)
	InvalidateAll()
}

// BudgetService orchestrates writes across the store, the event bus and the
// report cache. Account balances are kept as running totals: every
// transaction write applies its delta inside the same store transaction.
type BudgetService struct {
	store   store.Store
	events  EventPublisher
	reports ReportInvalidator
	logger  *log.Logger
	slog    *log.StructuredLogger
}

func NewBudgetService(st store.Store, events EventPublisher, reports ReportInvalidator, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentBudget)
	return &BudgetService{
		store:   st,
		events:  events,
		reports: reports,
		logger:  logger,
		slog:    log.NewStructuredLogger(logger),
	}
}

// Groups

func (s *BudgetService) ListGroups(ctx context.Context) ([]core.CategoryGroup, error) {
	return s.store.ListGroups(ctx)
}

func (s *BudgetService) CreateGroup(ctx context.Context, g core.CategoryGroup) (core.CategoryGroup, error) {
	g.Name = strings.TrimSpace(g.Name)
	if err := g.Validate(); err != nil {
		return core.CategoryGroup{}, err
	}
	var created core.CategoryGroup
	err := s.store.InTx(ctx, func(tx store.Store) error {
		groups, err := tx.ListGroups(ctx)
		if err != nil {
			return err
		}
		g.SortOrder = len(groups)
		created, err = tx.CreateGroup(ctx, g)
		return err
	})
	if err != nil {
		return core.CategoryGroup{}, fmt.Errorf("create group: %w", err)
	}
	s.invalidateAll()
	return created, nil
}

// UpdateGroup renames the group and sets its collapsed flag; sort order is
// only changed through ReorderGroups.
func (s *BudgetService) UpdateGroup(ctx context.Context, g core.CategoryGroup) (core.CategoryGroup, error) {
	g.Name = strings.TrimSpace(g.Name)
	if err := g.Validate(); err != nil {
		return core.CategoryGroup{}, err
	}
	var updated core.CategoryGroup
	err := s.store.InTx(ctx, func(tx store.Store) error {
		cur, err := tx.GetGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		cur.Name = g.Name
		cur.Collapsed = g.Collapsed
		updated = cur
		return tx.UpdateGroup(ctx, cur)
	})
	if err != nil {
		return core.CategoryGroup{}, fmt.Errorf("update group: %w", err)
	}
	s.invalidateAll()
	return updated, nil
}

func (s *BudgetService) DeleteGroup(ctx context.Context, id int64) error {
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	s.invalidateAll()
	return nil
}

func (s *BudgetService) ReorderGroups(ctx context.Context, dragged, target int64) ([]core.CategoryGroup, error) {
	var ordered []core.CategoryGroup
	err := s.store.InTx(ctx, func(tx store.Store) error {
		groups, err := tx.ListGroups(ctx)
		if err != nil {
			return err
		}
		before := make(map[int64]int, len(groups))
		for _, g := range groups {
			before[g.ID] = g.SortOrder
		}
		ordered, err = ordering.ReorderGroups(groups, dragged, target)
		if err != nil {
			return err
		}
		for _, g := range ordered {
			if before[g.ID] == g.SortOrder {
				continue
			}
			if err := tx.UpdateGroup(ctx, g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reorder groups: %w", err)
	}
	s.logger.InfoContext(ctx, "Groups reordered", log.FieldOperation, log.OpReorder, "dragged", dragged, "target", target)
	s.invalidateAll()
	return ordered, nil
}

// Categories

func (s *BudgetService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *BudgetService) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

// CreateCategory appends the category at the end of its group.
func (s *BudgetService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	var created core.Category
	err := s.store.InTx(ctx, func(tx store.Store) error {
		all, err := tx.ListCategories(ctx)
		if err != nil {
			return err
		}
		c.SortOrder = 0
		for _, other := range all {
			if other.InGroup(c.GroupID) && other.SortOrder >= c.SortOrder {
				c.SortOrder = other.SortOrder + 1
			}
		}
		created, err = tx.CreateCategory(ctx, c)
		return err
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.invalidateAll()
	return created, nil
}

// UpdateCategory changes name and default budget. Group and position are
// changed through MoveCategory and ReorderCategories.
func (s *BudgetService) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	var updated core.Category
	err := s.store.InTx(ctx, func(tx store.Store) error {
		cur, err := tx.GetCategory(ctx, c.ID)
		if err != nil {
			return err
		}
		cur.Name = c.Name
		cur.Budget = c.Budget
		updated = cur
		return tx.UpdateCategory(ctx, cur)
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	s.invalidateAll()
	return updated, nil
}

// DeleteCategory refuses while any transaction references the category.
func (s *BudgetService) DeleteCategory(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(tx store.Store) error {
		n, err := tx.CountTransactions(ctx, store.TransactionFilter{CategoryID: &id})
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w (%d transactions)", core.ErrCategoryInUse, n)
		}
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.invalidateAll()
	return nil
}

// ReorderCategories drops dragged onto target, moving it into the target's
// group when needed, and persists the renumbered sort orders.
func (s *BudgetService) ReorderCategories(ctx context.Context, dragged, target int64) ([]core.Category, error) {
	var ordered []core.Category
	err := s.store.InTx(ctx, func(tx store.Store) error {
		all, err := tx.ListCategories(ctx)
		if err != nil {
			return err
		}
		before := make(map[int64]core.Category, len(all))
		for _, c := range all {
			before[c.ID] = c
		}
		ordered, err = ordering.ReorderCategories(all, dragged, target)
		if err != nil {
			return err
		}
		for _, c := range ordered {
			prev := before[c.ID]
			if prev.SortOrder == c.SortOrder && prev.InGroup(c.GroupID) {
				continue
			}
			if err := tx.UpdateCategory(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reorder categories: %w", err)
	}

	s.logger.InfoContext(ctx, "Categories reordered", log.FieldOperation, log.OpReorder, "dragged", dragged, "target", target)
	s.invalidateAll()
	e := amqp.NewEvent(amqp.CategoriesReordered)
	e.CategoryIDs = []int64{dragged, target}
	s.publish(ctx, e)
	return ordered, nil
}

// MoveCategory assigns the category to a group (nil for ungrouped).
func (s *BudgetService) MoveCategory(ctx context.Context, id int64, groupID *int64) (core.Category, error) {
	var moved core.Category
	err := s.store.InTx(ctx, func(tx store.Store) error {
		c, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		groups, err := tx.ListGroups(ctx)
		if err != nil {
			return err
		}
		all, err := tx.ListCategories(ctx)
		if err != nil {
			return err
		}
		moved, err = ordering.MoveToGroup(c, groupID, groups, all)
		if err != nil {
			return err
		}
		return tx.UpdateCategory(ctx, moved)
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("move category %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Category moved", log.FieldOperation, log.OpMove, log.FieldCategoryID, id)
	s.invalidateAll()
	return moved, nil
}

// SetMonthlyBudget overrides a category's budget for one month.
func (s *BudgetService) SetMonthlyBudget(ctx context.Context, a core.BudgetAssignment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.store.SetAssignment(ctx, a); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	s.invalidate(a.Year, a.Month)
	return nil
}

// ClearMonthlyBudget removes an override so the default budget applies again.
func (s *BudgetService) ClearMonthlyBudget(ctx context.Context, categoryID int64, year, month int) error {
	if err := s.store.DeleteAssignment(ctx, categoryID, year, month); err != nil {
		return fmt.Errorf("clear budget: %w", err)
	}
	s.invalidate(year, month)
	return nil
}

// Accounts

func (s *BudgetService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return s.store.ListAccounts(ctx)
}

func (s *BudgetService) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// CreateAccount starts the running balance at the opening balance.
func (s *BudgetService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	a.Balance = a.OpeningBalance
	created, err := s.store.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

// UpdateAccount edits name, type and opening balance. A changed opening
// balance shifts the running balance by the difference. The currency cannot
// change once transactions reference the account.
func (s *BudgetService) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	var updated core.Account
	err := s.store.InTx(ctx, func(tx store.Store) error {
		cur, err := tx.GetAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		if cur.Currency != a.Currency {
			n, err := tx.CountTransactions(ctx, store.TransactionFilter{AccountID: &a.ID})
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: account has %d transactions", core.ErrCurrencyMismatch, n)
			}
		}
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		if diff := a.OpeningBalance.Sub(cur.OpeningBalance); !diff.IsZero() {
			if err := tx.AdjustBalance(ctx, a.ID, diff); err != nil {
				return err
			}
		}
		updated, err = tx.GetAccount(ctx, a.ID)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}
	return updated, nil
}

func (s *BudgetService) DeleteAccount(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(tx store.Store) error {
		n, err := tx.CountTransactions(ctx, store.TransactionFilter{AccountID: &id})
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w (%d transactions)", core.ErrAccountInUse, n)
		}
		return tx.DeleteAccount(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	return nil
}

// Transactions

func (s *BudgetService) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	if f.Month != 0 && (f.Month < 1 || f.Month > 12) {
		return nil, core.ErrInvalidMonth
	}
	return s.store.ListTransactions(ctx, f)
}

func (s *BudgetService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func normalizeTransaction(t core.Transaction) core.Transaction {
	t.Description = strings.TrimSpace(t.Description)
	t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
	t.OriginalCurrency = strings.ToUpper(strings.TrimSpace(t.OriginalCurrency))
	if t.Amount.IsNegative() {
		// the type carries the direction
		t.Amount = t.Amount.Abs()
	}
	if t.OriginalAmount != nil {
		v := t.OriginalAmount.Abs()
		t.OriginalAmount = &v
	}
	return t
}

// applyDelta adjusts the account referenced by t by sign times its balance delta.
func applyDelta(ctx context.Context, tx store.Store, t core.Transaction, sign int64) error {
	if t.AccountID == nil {
		return nil
	}
	acct, err := tx.GetAccount(ctx, *t.AccountID)
	if err != nil {
		return err
	}
	delta, err := t.BalanceDelta(acct.Currency)
	if err != nil {
		return err
	}
	return tx.AdjustBalance(ctx, acct.ID, delta.Mul(decimal.NewFromInt(sign)))
}

func (s *BudgetService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = normalizeTransaction(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var created core.Transaction
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		created, err = tx.CreateTransaction(ctx, t)
		if err != nil {
			return err
		}
		return applyDelta(ctx, tx, created, 1)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.slog.LogTransactionSaved(ctx, log.OpCreate, created.ID, created.Amount.String(), created.Currency, string(created.Type), created.CategoryID)
	s.invalidate(created.Date.Year(), created.Date.Month())
	s.publish(ctx, transactionEvent(amqp.TransactionCreated, created))
	return created, nil
}

// UpdateTransaction reverses the stored version's balance effect and applies
// the new one, so account, amount, type and currency changes all stay consistent.
func (s *BudgetService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = normalizeTransaction(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var old core.Transaction
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		old, err = tx.GetTransaction(ctx, t.ID)
		if err != nil {
			return err
		}
		if err := applyDelta(ctx, tx, old, -1); err != nil {
			return fmt.Errorf("reverse previous balance: %w", err)
		}
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		return applyDelta(ctx, tx, t, 1)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}

	s.slog.LogTransactionSaved(ctx, log.OpUpdate, t.ID, t.Amount.String(), t.Currency, string(t.Type), t.CategoryID)
	s.invalidate(old.Date.Year(), old.Date.Month())
	s.invalidate(t.Date.Year(), t.Date.Month())

	e := transactionEvent(amqp.TransactionUpdated, t)
	e.AccountIDs = mergeIDs(e.AccountIDs, old.AccountID)
	sameMonth := old.Date.InMonth(t.Date.Year(), t.Date.Month())
	if sameMonth && old.CategoryID != 0 && old.CategoryID != t.CategoryID {
		e.CategoryIDs = append(e.CategoryIDs, old.CategoryID)
	}
	s.publish(ctx, e)

	// The month the entry left needs its category rechecked as well.
	if !sameMonth && old.CategoryID != 0 {
		prev := transactionEvent(amqp.TransactionUpdated, old)
		prev.AccountIDs = nil
		s.publish(ctx, prev)
	}
	return t, nil
}

func (s *BudgetService) DeleteTransaction(ctx context.Context, id int64) error {
	var old core.Transaction
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		old, err = tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if err := applyDelta(ctx, tx, old, -1); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	s.slog.LogTransactionSaved(ctx, log.OpDelete, id, old.Amount.String(), old.Currency, string(old.Type), old.CategoryID)
	s.invalidate(old.Date.Year(), old.Date.Month())
	s.publish(ctx, transactionEvent(amqp.TransactionDeleted, old))
	return nil
}

func transactionEvent(typ amqp.EventType, t core.Transaction) amqp.Event {
	e := amqp.NewEvent(typ)
	e.TransactionID = t.ID
	e.Year = t.Date.Year()
	e.Month = t.Date.Month()
	e.AccountIDs = mergeIDs(nil, t.AccountID)
	if t.CategoryID != 0 {
		e.CategoryIDs = []int64{t.CategoryID}
	}
	return e
}

func mergeIDs(ids []int64, id *int64) []int64 {
	if id == nil {
		return ids
	}
	for _, v := range ids {
		if v == *id {
			return ids
		}
	}
	return append(ids, *id)
}

// publish is best effort: the write already succeeded.
func (s *BudgetService) publish(ctx context.Context, e amqp.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			log.FieldEventType, e.Type,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}

func (s *BudgetService) invalidate(year, month int) {
	if s.reports != nil {
		s.reports.Invalidate(year, month)
	}
}

func (s *BudgetService) invalidateAll() {
	if s.reports != nil {
		s.reports.InvalidateAll()
	}
}

// RequestReconcile asks the worker to recompute an account's balance.
func (s *BudgetService) RequestReconcile(ctx context.Context, accountID int64) error {
	if s.events == nil {
		return errors.New("event bus not configured")
	}
	e := amqp.NewEvent(amqp.AccountReconcile)
	e.AccountIDs = []int64{accountID}
	return s.events.PublishEvent(ctx, e)
}
