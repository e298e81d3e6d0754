package http

import (
	"net/http"

	"fxledger/internal/core"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.ledger.ListBudgets(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, "list", err)
		return
	}
	if budgets == nil {
		budgets = map[core.MonthKey]core.BudgetRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": budgets})
}

// handlePutBudget stores the budget of the YYYY-MM month in the path.
func (s *Server) handlePutBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update", err)
		return
	}
	rec, err := req.Record()
	if err != nil {
		writeError(w, r, "update", err)
		return
	}
	month := r.PathValue("month")
	if err := s.ledger.SetBudget(r.Context(), userID(r), month, rec); err != nil {
		writeError(w, r, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "budget": rec})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveBudget(r.Context(), userID(r), r.PathValue("month")); err != nil {
		writeError(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
