package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"budget/internal/budget"
	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/currency"
	"budget/internal/log"
	"budget/internal/store"
)

// RateSource is satisfied by *rates.Refresher.
type RateSource interface {
	Current(ctx context.Context) (currency.RateTable, error)
}

// ReportService builds month reports in a display currency and caches them
// until a write touches the month.
type ReportService struct {
	store   store.Store
	rates   RateSource
	cache   cache.Cache[budget.MonthReport]
	logger  *log.Logger
	now     func() time.Time
	display string
}

// NewReportService wires the report builder. cache and rates may be nil.
func NewReportService(st store.Store, rates RateSource, c cache.Cache[budget.MonthReport], displayCurrency string, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportService{
		store:   st,
		rates:   rates,
		cache:   c,
		logger:  logger.WithComponent(log.ComponentReport),
		now:     time.Now,
		display: strings.ToUpper(displayCurrency),
	}
}

// DisplayCurrency returns the configured global currency.
func (s *ReportService) DisplayCurrency() string {
	return s.display
}

func reportKey(year, month int, cur string) string {
	return fmt.Sprintf("%s%s", monthPrefix(year, month), cur)
}

func monthPrefix(year, month int) string {
	return fmt.Sprintf("%04d-%02d:", year, month)
}

// Invalidate drops cached reports for one month in every currency.
func (s *ReportService) Invalidate(year, month int) {
	if s.cache == nil {
		return
	}
	if n := s.cache.DeletePrefix(monthPrefix(year, month)); n > 0 {
		s.logger.Debug("Report cache invalidated", log.FieldYear, year, log.FieldMonth, month, "entries", n)
	}
}

// InvalidateAll drops every cached report.
func (s *ReportService) InvalidateAll() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

// Rates returns the current rate table, empty when none could be loaded.
func (s *ReportService) Rates(ctx context.Context) currency.RateTable {
	if s.rates == nil {
		return currency.RateTable{}
	}
	tbl, err := s.rates.Current(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Exchange rates unavailable", log.FieldError, err)
		return currency.RateTable{}
	}
	return tbl
}

// Convert converts amount with the current rate table. ok=false means the
// amount came back unchanged because a rate was missing.
func (s *ReportService) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, bool, currency.RateTable) {
	tbl := s.Rates(ctx)
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	out, ok := tbl.Convert(amount, from, to)
	if !ok {
		s.logger.WarnContext(ctx, "Conversion fell back to identity", "from", from, "to", to, log.FieldRateSource, tbl.Source)
	}
	return out, ok, tbl
}

// MonthReport returns the report for the month in cur, or in the display
// currency when cur is empty.
func (s *ReportService) MonthReport(ctx context.Context, year, month int, cur string) (budget.MonthReport, error) {
	if month < 1 || month > 12 {
		return budget.MonthReport{}, core.ErrInvalidMonth
	}
	cur = strings.ToUpper(strings.TrimSpace(cur))
	if cur == "" {
		cur = s.display
	}
	if err := core.ValidateCurrency(cur); err != nil {
		return budget.MonthReport{}, err
	}

	key := reportKey(year, month, cur)
	if s.cache != nil {
		if rep, ok := s.cache.Get(key); ok {
			return rep, nil
		}
	}

	var (
		groups      []core.CategoryGroup
		categories  []core.Category
		assignments []core.BudgetAssignment
		txs         []core.Transaction
		tbl         currency.RateTable
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		groups, err = s.store.ListGroups(gctx)
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.store.ListCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		assignments, err = s.store.ListAssignments(gctx, year, month)
		return err
	})
	g.Go(func() (err error) {
		txs, err = s.store.ListTransactions(gctx, store.TransactionFilter{Year: year, Month: month})
		return err
	})
	g.Go(func() error {
		tbl = s.Rates(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return budget.MonthReport{}, fmt.Errorf("load report data: %w", err)
	}

	rep := budget.BuildMonthReport(budget.ReportInput{
		Year:         year,
		Month:        month,
		Currency:     cur,
		Groups:       groups,
		Categories:   categories,
		Assignments:  assignments,
		Transactions: txs,
		Converter:    tbl,
		Now:          s.now(),
	})
	if !tbl.FetchedAt.IsZero() {
		at := tbl.FetchedAt
		rep.RatesFetchedAt = &at
	}

	fields := log.NewFields().WithPeriod(year, month)
	fields[log.FieldCurrency] = cur
	if rep.Unconverted > 0 {
		fields["unconverted"] = rep.Unconverted
		fields[log.FieldRateSource] = tbl.Source
		s.logger.WarnContext(ctx, "Report contains amounts without an exchange rate", fields.ToSlice()...)
	} else {
		s.logger.DebugContext(ctx, "Report built", fields.ToSlice()...)
	}

	if s.cache != nil {
		s.cache.Set(key, rep)
	}
	return rep, nil
}

// CategoryStatus returns one category's status for the month in the display currency.
func (s *ReportService) CategoryStatus(ctx context.Context, categoryID int64, year, month int) (budget.CategoryStatus, error) {
	rep, err := s.MonthReport(ctx, year, month, "")
	if err != nil {
		return budget.CategoryStatus{}, err
	}
	st, ok := rep.Category(categoryID)
	if !ok {
		return budget.CategoryStatus{}, fmt.Errorf("category %d: %w", categoryID, core.ErrNotFound)
	}
	return st, nil
}
