package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/store"
)

const accountColumns = `id, name, type, balance, opening_balance, currency`

func scanAccount(sc interface{ Scan(...any) error }) (core.Account, error) {
	var (
		a   core.Account
		typ string
	)
	if err := sc.Scan(&a.ID, &a.Name, &typ, &a.Balance, &a.OpeningBalance, &a.Currency); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.Currency = strings.TrimSpace(a.Currency)
	return a, nil
}

func (r *Repository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accts := make([]core.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accts = append(accts, a)
	}
	return accts, rows.Err()
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := scanAccount(r.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return core.Account{}, notFoundOr(err, "account", id)
	}
	return a, nil
}

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	id, err := r.insert(ctx, `INSERT INTO accounts (name, type, balance, opening_balance, currency) VALUES (?, ?, ?, ?, ?)`,
		a.Name, string(a.Type), a.Balance, a.OpeningBalance, a.Currency)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	a.ID = id
	return a, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := r.exec(ctx, `UPDATE accounts SET name = ?, type = ?, opening_balance = ?, currency = ? WHERE id = ?`,
		a.Name, string(a.Type), a.OpeningBalance, a.Currency, a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return mustAffect(res, "account", a.ID)
}

func (r *Repository) DeleteAccount(ctx context.Context, id int64) error {
	n, err := r.CountTransactions(ctx, store.TransactionFilter{AccountID: &id})
	if err != nil {
		return err
	}
	if n > 0 {
		return core.ErrAccountInUse
	}
	res, err := r.exec(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return mustAffect(res, "account", id)
}

// AdjustBalance adds delta in Go rather than SQL so TEXT-stored sqlite
// balances never pass through floating point.
func (r *Repository) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	var balance decimal.Decimal
	err := r.queryRow(ctx, `SELECT balance FROM accounts WHERE id = ?`+r.dialect.forUpdate(), id).Scan(&balance)
	if err != nil {
		return notFoundOr(err, "account", id)
	}
	return r.SetBalance(ctx, id, balance.Add(delta))
}

func (r *Repository) SetBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	res, err := r.exec(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, balance, id)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return mustAffect(res, "account", id)
}
