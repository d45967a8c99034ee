package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/store"
)

// Reconciliation is the outcome of recomputing one account balance.
type Reconciliation struct {
	AccountID int64           `json:"account_id"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Stored    decimal.Decimal `json:"stored"`
	Computed  decimal.Decimal `json:"computed"`
	Drift     decimal.Decimal `json:"drift"`
	Fixed     bool            `json:"fixed"`
	// Skipped counts transactions with no amount in the account's currency.
	Skipped int `json:"skipped"`
}

// Reconciler recomputes running balances from the opening balance and the
// account's transactions, correcting any drift.
type Reconciler struct {
	store  store.Store
	logger *log.Logger
}

func NewReconciler(st store.Store, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Reconciler{store: st, logger: logger.WithComponent(log.ComponentBudget)}
}

// ReconcileAccount recomputes one account's balance and stores it when it drifted.
func (r *Reconciler) ReconcileAccount(ctx context.Context, id int64) (Reconciliation, error) {
	var rec Reconciliation
	err := r.store.InTx(ctx, func(tx store.Store) error {
		acct, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		txs, err := tx.ListTransactions(ctx, store.TransactionFilter{AccountID: &id})
		if err != nil {
			return err
		}

		rec = Reconciliation{
			AccountID: acct.ID,
			Name:      acct.Name,
			Currency:  acct.Currency,
			Stored:    acct.Balance,
			Computed:  acct.OpeningBalance,
		}
		for _, t := range txs {
			delta, err := t.BalanceDelta(acct.Currency)
			if errors.Is(err, core.ErrCurrencyMismatch) {
				rec.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			rec.Computed = rec.Computed.Add(delta)
		}
		rec.Drift = rec.Stored.Sub(rec.Computed)
		if rec.Drift.IsZero() {
			return nil
		}
		rec.Fixed = true
		return tx.SetBalance(ctx, acct.ID, rec.Computed)
	})
	if err != nil {
		return Reconciliation{}, fmt.Errorf("reconcile account %d: %w", id, err)
	}

	if rec.Fixed {
		r.logger.WarnContext(ctx, "Account balance drift corrected",
			log.FieldOperation, log.OpReconcile,
			log.FieldAccountID, rec.AccountID,
			"stored", rec.Stored.String(),
			"computed", rec.Computed.String(),
			"drift", rec.Drift.String())
	}
	if rec.Skipped > 0 {
		r.logger.WarnContext(ctx, "Transactions skipped during reconciliation",
			log.FieldAccountID, rec.AccountID, "skipped", rec.Skipped)
	}
	return rec, nil
}

// ReconcileAll reconciles every account. It keeps going after a failure and
// returns the joined errors.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	accounts, err := r.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]Reconciliation, 0, len(accounts))
	var errs []error
	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec, err := r.ReconcileAccount(ctx, a.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rec)
	}
	r.logger.InfoContext(ctx, "Reconciliation finished",
		log.FieldOperation, log.OpReconcile, "accounts", len(out), "failed", len(errs))
	return out, errors.Join(errs...)
}
