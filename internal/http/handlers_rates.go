package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/currency"
	"budget/internal/log"
)

type ratesView struct {
	currency.RateTable
	Age string `json:"age,omitempty"`
}

func (s *Server) viewRates(tbl currency.RateTable) ratesView {
	v := ratesView{RateTable: tbl}
	if !tbl.FetchedAt.IsZero() {
		v.Age = tbl.Age(s.now()).Round(time.Second).String()
	}
	return v
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.viewRates(s.opts.Reports.Rates(r.Context())))
}

func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	if s.opts.Rates == nil {
		ServiceUnavailableError("no exchange-rate provider configured").Write(w)
		return
	}
	tbl, err := s.opts.Rates.Refresh(r.Context())
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Manual rate refresh failed",
			log.FieldOperation, log.OpRefresh, log.FieldError, err)
		ErrorResponse(http.StatusBadGateway, "upstream_failed", "exchange-rate provider failed: "+err.Error()).Write(w)
		return
	}
	s.opts.Reports.InvalidateAll()
	writeJSON(w, http.StatusOK, s.viewRates(tbl))
}

type conversionView struct {
	Amount    decimal.Decimal `json:"amount"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Result    decimal.Decimal `json:"result"`
	Converted bool            `json:"converted"`
	Formatted string          `json:"formatted"`
	RatesAt   *time.Time      `json:"rates_fetched_at,omitempty"`
}

// handleConvert converts with the cached table. A missing rate is not an
// error: the amount comes back unchanged with converted=false.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := core.ParseDecimal(q.Get("amount"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	from := strings.ToUpper(strings.TrimSpace(q.Get("from")))
	to := strings.ToUpper(strings.TrimSpace(q.Get("to")))
	if to == "" {
		to = s.opts.Reports.DisplayCurrency()
	}
	for _, code := range []string{from, to} {
		if err := core.ValidateCurrency(code); err != nil {
			writeError(w, r, err)
			return
		}
	}

	result, ok, tbl := s.opts.Reports.Convert(r.Context(), amount, from, to)
	v := conversionView{
		Amount:    amount,
		From:      from,
		To:        to,
		Result:    result,
		Converted: ok,
	}
	// An unconverted amount is still in the source currency.
	shown := to
	if !ok {
		shown = from
	}
	v.Formatted = currency.FormatDecimal(result, s.formatFor(shown))
	if !tbl.FetchedAt.IsZero() {
		at := tbl.FetchedAt
		v.RatesAt = &at
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := core.ParseDecimal(q.Get("amount"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(q.Get("currency")))
	if code == "" {
		code = s.opts.Reports.DisplayCurrency()
	}
	if err := core.ValidateCurrency(code); err != nil {
		writeError(w, r, err)
		return
	}
	f := s.formatFor(code).With(q.Get("locale"), currency.Placement(q.Get("placement")))
	writeJSON(w, http.StatusOK, map[string]any{
		"formatted": currency.FormatDecimal(amount, f),
		"format":    f,
	})
}
