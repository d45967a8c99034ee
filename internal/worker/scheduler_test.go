package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/services"
)

func TestScheduler_AddAndRunNow(t *testing.T) {
	s := NewScheduler(time.Second, nil)

	calls := 0
	if err := s.Add("count", "@every 1h", func(ctx context.Context) error {
		calls++
		if _, ok := ctx.Deadline(); !ok {
			t.Error("job context has no deadline")
		}
		return nil
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.RunNow(context.Background(), "count"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	if err := s.Add("count", "@every 1h", func(context.Context) error { return nil }); err == nil {
		t.Error("Add() with duplicate name should fail")
	}
	if err := s.Add("bad", "not a schedule", func(context.Context) error { return nil }); err == nil {
		t.Error("Add() with invalid spec should fail")
	}
	if err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Error("RunNow() with unknown job should fail")
	}
}

func TestScheduler_RunNowReturnsJobError(t *testing.T) {
	s := NewScheduler(time.Second, nil)
	boom := errors.New("boom")
	if err := s.Add("fail", "@daily", func(context.Context) error { return boom }); err != nil {
		t.Fatal(err)
	}
	if err := s.RunNow(context.Background(), "fail"); !errors.Is(err, boom) {
		t.Errorf("RunNow() error = %v, want %v", err, boom)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(time.Second, nil)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

type fakeAllReconciler struct {
	results []services.Reconciliation
	err     error
}

func (f fakeAllReconciler) ReconcileAll(context.Context) ([]services.Reconciliation, error) {
	return f.results, f.err
}

func TestReconcileJob(t *testing.T) {
	ok := fakeAllReconciler{results: []services.Reconciliation{
		{AccountID: 1, Drift: decimal.Zero},
		{AccountID: 2, Drift: decimal.NewFromInt(5), Fixed: true},
	}}
	if err := ReconcileJob(ok, nil)(context.Background()); err != nil {
		t.Errorf("ReconcileJob() error = %v", err)
	}

	failing := fakeAllReconciler{err: errors.New("account 3: locked")}
	if err := ReconcileJob(failing, nil)(context.Background()); err == nil {
		t.Error("ReconcileJob() should surface reconcile errors")
	}
}
