package http

import (
	"net/http"
	"strings"

	"budget/internal/core"
	"budget/internal/currency"
	"budget/internal/store"
)

// transactionView adds the display string of the amount, signed by type.
type transactionView struct {
	core.Transaction
	Formatted string `json:"formatted"`
}

func (s *Server) viewTransaction(t core.Transaction) transactionView {
	amount := t.Magnitude()
	if t.Type == core.Expense {
		amount = amount.Neg()
	}
	return transactionView{Transaction: t, Formatted: currency.FormatDecimal(amount, s.formatFor(t.Currency))}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.TransactionFilter{}
	if q.Get("year") != "" || q.Get("month") != "" {
		mp := ParseMonthParams(q, s.now())
		f.Year, f.Month = mp.Year, mp.Month
	}
	var err error
	if f.CategoryID, err = queryInt64(q, "category_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.AccountID, err = queryInt64(q, "account_id"); err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := s.opts.Budget.ListTransactions(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transactionView, len(txs))
	for i, t := range txs {
		out[i] = s.viewTransaction(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.opts.Budget.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewTransaction(t))
}

func (s *Server) decodeTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, error) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(req.Currency) == "" && s.opts.Reports != nil {
		req.Currency = s.opts.Reports.DisplayCurrency()
	}
	return req.toTransaction(s.now())
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.opts.Budget.CreateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.viewTransaction(created))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t.ID = id
	updated, err := s.opts.Budget.UpdateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewTransaction(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.opts.Budget.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
