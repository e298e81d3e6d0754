package http

import (
	"io"
	"net/http"
	"strings"
	"time"

	"fxledger/internal/core"
)

// handleListTransactions lists the caller's transactions. With
// ?converted=1 each carries its amount in the display currency.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if parseBool(r.URL.Query(), "converted") {
		txs, err := s.ledger.ListConverted(r.Context(), userID(r))
		if err != nil {
			writeError(w, r, "list", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
		return
	}
	txs, err := s.ledger.ListTransactions(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, "list", err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "create", err)
		return
	}
	tx, err := req.Transaction()
	if err != nil {
		writeError(w, r, "create", err)
		return
	}
	created, err := s.ledger.CreateTransaction(r.Context(), userID(r), tx)
	if err != nil {
		writeError(w, r, "create", err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+created.ID).
		Body(created).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update", err)
		return
	}
	tx, err := req.Transaction()
	if err != nil {
		writeError(w, r, "update", err)
		return
	}
	updated, err := s.ledger.UpdateTransaction(r.Context(), userID(r), r.PathValue("id"), tx)
	if err != nil {
		writeError(w, r, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImport reads a CSV body. Rows without a currency take ?currency=,
// or the display currency. Invalid rows are reported, valid ones stored.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body := io.LimitReader(r.Body, maxImportBytes)
	res, err := s.ledger.Import(r.Context(), userID(r), body, strings.TrimSpace(r.URL.Query().Get("currency")))
	if err != nil {
		writeError(w, r, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Imported int        `json:"imported"`
		Rejected int        `json:"rejected"`
		Rows     []rowError `json:"rows,omitempty"`
	}{res.Imported, len(res.Errors), importRows(res.Errors)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := "transactions-" + time.Now().UTC().Format(time.DateOnly) + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := s.ledger.Export(r.Context(), userID(r), w); err != nil {
		// Headers are already sent, so the failure can only be logged.
		s.logger.ErrorContext(r.Context(), "Export failed", "user_id", userID(r), "error", err)
	}
}
