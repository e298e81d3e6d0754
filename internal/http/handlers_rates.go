package http

import (
	"errors"
	"net/http"

	"fxledger/internal/core"
	"fxledger/internal/services"
)

// handleRates answers GET /api/rates?base=USD&symbols=PLN,EUR&force=1.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if s.proxy == nil {
		ErrorResponse(http.StatusServiceUnavailable, "rates proxy not configured").Write(w)
		return
	}
	q := r.URL.Query()
	symbols, err := services.ParseSymbols(q.Get("symbols"))
	if err != nil {
		writeError(w, r, "rates", err)
		return
	}
	quote, err := s.proxy.Quote(r.Context(), q.Get("base"), symbols, parseBool(q, "force"))
	if err != nil {
		if errors.Is(err, services.ErrRatesUnavailable) {
			s.logger.WarnContext(r.Context(), "Rates unavailable", "base", q.Get("base"), "error", err)
		}
		writeError(w, r, "rates", err)
		return
	}
	resp := NewJSONResponse().Body(quote)
	if quote.Stale {
		resp.Header("Warning", `110 - "Response is Stale"`)
	}
	resp.Write(w)
}

// handleConvert answers GET /api/convert?amount=12.5&from=USD&to=PLN. An
// empty to converts into the caller's display currency.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := core.ParseDecimal(q.Get("amount"))
	if err != nil {
		writeError(w, r, "convert", err)
		return
	}
	if q.Get("from") == "" {
		writeError(w, r, "convert", core.ErrInvalidCurrency)
		return
	}
	conv, err := s.ledger.Convert(r.Context(), userID(r), d.InexactFloat64(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, r, "convert", err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type displayCurrencyRequest struct {
	Currency string `json:"currency"`
}

// handleGetDisplayCurrency reports the caller's display currency and the
// state of its rate table.
func (s *Server) handleGetDisplayCurrency(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.RatesSnapshot(r.Context(), userID(r)))
}

// handleSelectDisplayCurrency switches the caller's display currency and
// returns the snapshot published at once, usually the optimistic table with
// the authoritative fetch still pending.
func (s *Server) handleSelectDisplayCurrency(w http.ResponseWriter, r *http.Request) {
	var req displayCurrencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "select", err)
		return
	}
	snap, err := s.ledger.SelectCurrency(r.Context(), userID(r), req.Currency)
	if err != nil {
		writeError(w, r, "select", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
