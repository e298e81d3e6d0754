package http

import "net/http"

// handleDashboard answers GET /api/dashboard?currency=PLN&months=6. A
// currency different from the current one is selected first.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := s.ledger.Dashboard(r.Context(), userID(r), q.Get("currency"), parseMonths(q))
	if err != nil {
		writeError(w, r, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
