package rates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"budget/internal/currency"
	"budget/internal/log"
)

// Refresher fetches rates from a provider into a store. A failed fetch is
// logged and leaves the last good table in place.
type Refresher struct {
	provider Provider
	store    Store
	logger   *log.Logger
	timeout  time.Duration

	mu          sync.Mutex
	cron        *cron.Cron
	lastErr     error
	lastAttempt time.Time
	onRefresh   []func()
}

func NewRefresher(provider Provider, store Store, logger *log.Logger) *Refresher {
	if logger == nil {
		logger = log.Discard()
	}
	return &Refresher{
		provider: provider,
		store:    store,
		logger:   logger.WithComponent(log.ComponentRates),
		timeout:  30 * time.Second,
	}
}

// OnRefresh registers fn to run after every successfully stored table,
// whichever path triggered the refresh.
func (r *Refresher) OnRefresh(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRefresh = append(r.onRefresh, fn)
}

// Refresh fetches and stores a new table.
func (r *Refresher) Refresh(ctx context.Context) (currency.RateTable, error) {
	if r.provider == nil {
		return currency.RateTable{}, ErrNoProvider
	}
	tbl, err := r.provider.Fetch(ctx)
	if err == nil {
		err = r.store.Save(ctx, tbl)
	}

	r.mu.Lock()
	r.lastAttempt = time.Now()
	r.lastErr = err
	hooks := append([]func(){}, r.onRefresh...)
	r.mu.Unlock()

	if err != nil {
		r.logger.WarnContext(ctx, "Rate refresh failed, keeping last good table",
			log.FieldRateSource, r.provider.Name(),
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
		return currency.RateTable{}, fmt.Errorf("refresh rates: %w", err)
	}

	r.logger.InfoContext(ctx, "Exchange rates refreshed",
		log.FieldRateSource, r.provider.Name(),
		"base", tbl.Base,
		"currencies", len(tbl.Rates),
		"as_of", tbl.FetchedAt)
	for _, fn := range hooks {
		fn()
	}
	return tbl, nil
}

// Current returns the stored table, fetching once when nothing is stored yet.
// An empty table with a nil error is returned when no rates can be had, so
// conversions fall back to identity.
func (r *Refresher) Current(ctx context.Context) (currency.RateTable, error) {
	tbl, err := r.store.Load(ctx)
	if err == nil {
		return tbl, nil
	}
	if !errors.Is(err, ErrNoRates) {
		return currency.RateTable{}, err
	}
	if r.provider == nil {
		return currency.RateTable{}, nil
	}
	tbl, err = r.Refresh(ctx)
	if err != nil {
		return currency.RateTable{}, nil
	}
	return tbl, nil
}

// LastError reports the outcome of the most recent refresh attempt.
func (r *Refresher) LastError() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastAttempt, r.lastErr
}

// Start schedules Refresh on a cron spec ("@every 6h", "0 17 * * 1-5").
func (r *Refresher) Start(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("refresher already started")
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.Refresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("Rate refresh scheduled", "schedule", spec)
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
