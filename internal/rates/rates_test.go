package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"budget/internal/currency"
)

const ecbSample = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<gesmes:subject>Reference rates</gesmes:subject>
	<Cube>
		<Cube time="2025-01-10">
			<Cube currency="USD" rate="1.0304"/>
			<Cube currency="JPY" rate="162.89"/>
			<Cube currency="GBP" rate="0.83543"/>
		</Cube>
	</Cube>
</gesmes:Envelope>`

func TestECBProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(ecbSample))
	}))
	defer srv.Close()

	tbl, err := NewECBProvider(srv.URL, srv.Client()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if tbl.Base != "EUR" || tbl.Source != "ecb" {
		t.Errorf("base/source = %s/%s", tbl.Base, tbl.Source)
	}
	if r, ok := tbl.Rate("USD"); !ok || !r.Equal(decimal.RequireFromString("1.0304")) {
		t.Errorf("USD = %s", r)
	}
	if len(tbl.Rates) != 4 {
		t.Errorf("rates = %d, want 4 including EUR", len(tbl.Rates))
	}
	if tbl.FetchedAt.Format(time.DateOnly) != "2025-01-10" {
		t.Errorf("fetched at = %s", tbl.FetchedAt)
	}
}

func TestECBProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"malformed xml", http.StatusOK, "<Cube"},
		{"no cubes", http.StatusOK, "<Envelope/>"},
		{"bad rate", http.StatusOK, `<Cube><Cube currency="USD" rate="abc"/></Cube>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			if _, err := NewECBProvider(srv.URL, nil).Fetch(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenAPIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","base_code":"USD","time_last_update_unix":1736467200,
			"rates":{"USD":1,"EUR":0.9705,"JPY":158.1}}`))
	}))
	defer srv.Close()

	tbl, err := NewOpenAPIProvider(srv.URL, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, ok := tbl.Convert(decimal.NewFromInt(100), "USD", "EUR")
	if !ok || !got.Equal(decimal.RequireFromString("97.05")) {
		t.Errorf("100 USD = %s EUR", got)
	}
	if tbl.FetchedAt.Unix() != 1736467200 {
		t.Errorf("fetched at = %v", tbl.FetchedAt)
	}
}

func TestOpenAPIProviderErrorResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
	}))
	defer srv.Close()
	if _, err := NewOpenAPIProvider(srv.URL, nil).Fetch(context.Background()); err == nil {
		t.Error("expected error")
	}
}

type fakeProvider struct {
	tbl   currency.RateTable
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(context.Context) (currency.RateTable, error) {
	f.calls++
	return f.tbl, f.err
}

func TestRefresherKeepsLastGoodTable(t *testing.T) {
	ctx := context.Background()
	good := currency.NewRateTable("USD", map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.9")}, time.Now())
	p := &fakeProvider{tbl: good}
	store := NewMemoryStore()
	r := NewRefresher(p, store, nil)

	if _, err := r.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	p.err = errors.New("feed down")
	if _, err := r.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	if _, lastErr := r.LastError(); lastErr == nil {
		t.Error("LastError should report the failure")
	}

	cur, err := r.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cur.Rate("EUR"); !ok {
		t.Error("last good table was lost")
	}
}

func TestRefresherCurrentFetchesLazily(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{tbl: currency.NewRateTable("EUR", nil, time.Now())}
	r := NewRefresher(p, NewMemoryStore(), nil)

	if _, err := r.Current(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Current(ctx); err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1", p.calls)
	}

	failing := NewRefresher(&fakeProvider{err: errors.New("down")}, NewMemoryStore(), nil)
	tbl, err := failing.Current(ctx)
	if err != nil || !tbl.IsEmpty() {
		t.Errorf("want empty table and no error, got %+v %v", tbl, err)
	}

	none := NewRefresher(nil, NewMemoryStore(), nil)
	if _, err := none.Refresh(ctx); !errors.Is(err, ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}
}

func TestRefresherOnRefresh(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{tbl: currency.NewRateTable("EUR", nil, time.Now())}
	r := NewRefresher(p, NewMemoryStore(), nil)

	var fired int
	r.OnRefresh(func() { fired++ })

	if _, err := r.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("hook fired %d times after a good refresh, want 1", fired)
	}

	p.err = errors.New("feed down")
	r.Refresh(ctx)
	if fired != 1 {
		t.Errorf("hook fired on a failed refresh")
	}

	// The lazy fetch in Current goes through the same path.
	lazy := NewRefresher(&fakeProvider{tbl: currency.NewRateTable("EUR", nil, time.Now())}, NewMemoryStore(), nil)
	var lazyFired bool
	lazy.OnRefresh(func() { lazyFired = true })
	if _, err := lazy.Current(ctx); err != nil {
		t.Fatal(err)
	}
	if !lazyFired {
		t.Error("hook not fired by the first Current fetch")
	}
}

func TestRefresherSchedule(t *testing.T) {
	r := NewRefresher(&fakeProvider{}, NewMemoryStore(), nil)
	if err := r.Start("not a schedule"); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if err := r.Start("@every 1h"); err != nil {
		t.Fatal(err)
	}
	if err := r.Start("@every 1h"); err == nil {
		t.Error("second Start should fail")
	}
	r.Stop()
	r.Stop()
}

func TestMemoryStoreEmpty(t *testing.T) {
	if _, err := NewMemoryStore().Load(context.Background()); !errors.Is(err, ErrNoRates) {
		t.Errorf("err = %v, want ErrNoRates", err)
	}
}

// TestRedisStore runs against a live server when REDIS_TEST_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	s := NewRedisStoreFromClient(client, "budget:test:rates", time.Minute)
	client.Del(ctx, "budget:test:rates")

	if _, err := s.Load(ctx); !errors.Is(err, ErrNoRates) {
		t.Fatalf("err = %v, want ErrNoRates", err)
	}
	tbl := currency.NewRateTable("EUR", map[string]decimal.Decimal{"USD": decimal.RequireFromString("1.03")}, time.Now())
	if err := s.Save(ctx, tbl); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r, ok := got.Rate("USD"); !ok || !r.Equal(decimal.RequireFromString("1.03")) {
		t.Errorf("USD = %s", r)
	}
}
