package http

import (
	"net/http"

	"budget/internal/core"
	"budget/internal/currency"
)

type accountView struct {
	core.Account
	FormattedBalance string `json:"formatted_balance"`
}

func (s *Server) viewAccount(a core.Account) accountView {
	return accountView{Account: a, FormattedBalance: currency.FormatDecimal(a.Balance, s.formatFor(a.Currency))}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := s.opts.Budget.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]accountView, len(accts))
	for i, a := range accts {
		out[i] = s.viewAccount(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.opts.Budget.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewAccount(a))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.opts.Budget.CreateAccount(r.Context(), req.toAccount())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.viewAccount(a))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a := req.toAccount()
	a.ID = id
	updated, err := s.opts.Budget.UpdateAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewAccount(updated))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.opts.Budget.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleReconcileAccount recomputes the balance inline, or hands the job to
// the worker when called with ?async=true.
func (s *Server) handleReconcileAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if _, err := s.opts.Budget.GetAccount(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.opts.Budget.RequestReconcile(r.Context(), id); err != nil {
			ServiceUnavailableError("reconciliation queue unavailable").Write(w)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"account_id": id, "status": "queued"})
		return
	}

	rec, err := s.opts.Reconciler.ReconcileAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
