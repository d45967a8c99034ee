package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/store"
)

const transactionColumns = `id, description, amount, currency, category_id, account_id, type, date, original_amount, original_currency`

func scanTransaction(sc interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx         core.Transaction
		categoryID sql.NullInt64
		accountID  sql.NullInt64
		date       dbDate
		origAmount decimal.NullDecimal
		origCur    sql.NullString
		txType     string
	)
	err := sc.Scan(&tx.ID, &tx.Description, &tx.Amount, &tx.Currency, &categoryID, &accountID,
		&txType, &date, &origAmount, &origCur)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Currency = strings.TrimSpace(tx.Currency)
	tx.CategoryID = categoryID.Int64
	tx.AccountID = idPtr(accountID)
	tx.Type = core.TransactionType(txType)
	tx.Date = date.Date
	if origAmount.Valid {
		v := origAmount.Decimal
		tx.OriginalAmount = &v
		tx.OriginalCurrency = strings.TrimSpace(origCur.String)
	}
	return tx, nil
}

// where renders the filter as a WHERE clause. Month ranges compare ISO dates
// so the same SQL works on TEXT and DATE columns.
func where(f store.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Year != 0 {
		start := time.Date(f.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(1, 0, 0)
		if f.Month != 0 {
			start = time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
			end = start.AddDate(0, 1, 0)
		}
		conds = append(conds, "date >= ?", "date < ?")
		args = append(args, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	if f.CategoryID != nil {
		conds = append(conds, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.AccountID != nil {
		conds = append(conds, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]core.Transaction, error) {
	clause, args := where(f)
	rows, err := r.query(ctx, `SELECT `+transactionColumns+` FROM transactions`+clause+` ORDER BY date, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *Repository) CountTransactions(ctx context.Context, f store.TransactionFilter) (int, error) {
	clause, args := where(f)
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM transactions`+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := scanTransaction(r.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return core.Transaction{}, notFoundOr(err, "transaction", id)
	}
	return tx, nil
}

func transactionArgs(tx core.Transaction) []any {
	var (
		categoryID sql.NullInt64
		origAmount decimal.NullDecimal
		origCur    sql.NullString
	)
	if tx.CategoryID != 0 {
		categoryID = sql.NullInt64{Int64: tx.CategoryID, Valid: true}
	}
	if tx.OriginalAmount != nil {
		origAmount = decimal.NullDecimal{Decimal: *tx.OriginalAmount, Valid: true}
		origCur = sql.NullString{String: tx.OriginalCurrency, Valid: true}
	}
	return []any{tx.Description, tx.Amount, tx.Currency, categoryID, nullID(tx.AccountID),
		string(tx.Type), tx.Date.String(), origAmount, origCur}
}

func (r *Repository) checkTransactionRefs(ctx context.Context, tx core.Transaction) error {
	if tx.CategoryID != 0 {
		if _, err := r.GetCategory(ctx, tx.CategoryID); err != nil {
			return err
		}
	}
	if tx.AccountID != nil {
		if _, err := r.GetAccount(ctx, *tx.AccountID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := r.checkTransactionRefs(ctx, tx); err != nil {
		return core.Transaction{}, err
	}
	id, err := r.insert(ctx, `INSERT INTO transactions (description, amount, currency, category_id, account_id,
		type, date, original_amount, original_currency) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transactionArgs(tx)...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	tx.ID = id
	return tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	if err := r.checkTransactionRefs(ctx, tx); err != nil {
		return err
	}
	args := append(transactionArgs(tx), tx.ID)
	res, err := r.exec(ctx, `UPDATE transactions SET description = ?, amount = ?, currency = ?, category_id = ?,
		account_id = ?, type = ?, date = ?, original_amount = ?, original_currency = ?,
		updated_at = CURRENT_TIMESTAMP WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return mustAffect(res, "transaction", tx.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return mustAffect(res, "transaction", id)
}
