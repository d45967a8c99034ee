// Package worker handles budget events consumed from the message bus.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/budget"
	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/currency"
	"budget/internal/log"
	"budget/internal/notify"
	"budget/internal/services"
)

// Reconciler is satisfied by *services.Reconciler.
type Reconciler interface {
	ReconcileAccount(ctx context.Context, id int64) (services.Reconciliation, error)
}

// StatusSource is satisfied by *services.ReportService. Writes happen in
// another process, so the worker drops the month's cached report before
// reading statuses.
type StatusSource interface {
	Invalidate(year, month int)
	CategoryStatus(ctx context.Context, categoryID int64, year, month int) (budget.CategoryStatus, error)
}

const tierMemory = 62 * 24 * time.Hour

// EventWorker reconciles balances touched by an event and alerts when a
// category's tier gets worse.
type EventWorker struct {
	reconciler Reconciler
	statuses   StatusSource
	notifier   notify.Notifier
	format     currency.Format
	tiers      *cache.LRUCache[budget.Tier]
	logger     *log.Logger
}

// NewEventWorker builds a worker. notifier may be nil to disable alerts.
func NewEventWorker(r Reconciler, statuses StatusSource, notifier notify.Notifier, format currency.Format, logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &EventWorker{
		reconciler: r,
		statuses:   statuses,
		notifier:   notifier,
		format:     format,
		tiers:      cache.NewLRUCache[budget.Tier](1024, tierMemory),
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// Tiers exposes the remembered tiers so the cache manager can expire them.
func (w *EventWorker) Tiers() cache.Cleaner {
	return w.tiers
}

// Handle processes one event. A returned error asks the consumer to retry.
func (w *EventWorker) Handle(ctx context.Context, e amqp.Event) error {
	w.logger.DebugContext(ctx, "Processing event",
		log.FieldEventType, e.Type,
		log.FieldTransactionID, e.TransactionID)

	switch {
	case e.IsTransaction():
		if err := w.reconcile(ctx, e.AccountIDs); err != nil {
			return err
		}
		w.checkCategories(ctx, e)
		return nil
	case e.Type == amqp.AccountReconcile:
		return w.reconcile(ctx, e.AccountIDs)
	case e.Type == amqp.CategoriesReordered:
		return nil
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event", log.FieldEventType, e.Type)
		return nil
	}
}

func (w *EventWorker) reconcile(ctx context.Context, ids []int64) error {
	var errs []error
	for _, id := range ids {
		rec, err := w.reconciler.ReconcileAccount(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			w.logger.DebugContext(ctx, "Account gone, skipping reconciliation", log.FieldAccountID, id)
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec.Fixed {
			w.logger.InfoContext(ctx, "Balance corrected after event",
				log.FieldAccountID, id, "drift", rec.Drift.String())
		}
	}
	return errors.Join(errs...)
}

func tierKey(categoryID int64, year, month int) string {
	return fmt.Sprintf("%d:%04d-%02d", categoryID, year, month)
}

// checkCategories compares each category's tier with the last one seen and
// sends an alert when it got worse. Deletes only refresh the remembered tier.
// Failures are logged only.
func (w *EventWorker) checkCategories(ctx context.Context, e amqp.Event) {
	if e.Year == 0 || e.Month == 0 || len(e.CategoryIDs) == 0 {
		return
	}
	w.statuses.Invalidate(e.Year, e.Month)
	for _, id := range e.CategoryIDs {
		st, err := w.statuses.CategoryStatus(ctx, id, e.Year, e.Month)
		if err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				w.logger.WarnContext(ctx, "Category status unavailable", log.FieldCategoryID, id, log.FieldError, err)
			}
			continue
		}

		key := tierKey(id, e.Year, e.Month)
		prev, seen := w.tiers.Get(key)
		if !seen {
			prev = budget.OnTrack
		}
		w.tiers.Set(key, st.Tier)
		if st.Tier.Severity() <= prev.Severity() {
			continue
		}

		w.logger.InfoContext(ctx, "Category tier worsened",
			log.FieldCategoryID, id,
			"from", prev,
			"to", st.Tier)
		w.alert(ctx, notify.Alert{
			Category: st.Name,
			Year:     e.Year,
			Month:    e.Month,
			Previous: prev,
			Status:   st.Status,
			Format:   w.format,
		})
	}
}

func (w *EventWorker) alert(ctx context.Context, a notify.Alert) {
	if w.notifier == nil {
		return
	}
	err := w.notifier.NotifyBudget(ctx, a)
	if err != nil && !errors.Is(err, notify.ErrNotConfigured) {
		w.logger.ErrorContext(ctx, "Budget alert failed", "category", a.Category, log.FieldError, err)
	}
}
