package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fxledger/internal/core"
)

// errBadRequest marks malformed request input.
var errBadRequest = errors.New("bad request")

// userID returns the user a request acts for.
func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
		return id
	}
	return defaultUser
}

// decodeJSON reads a single JSON document from the body into v. Numbers are
// kept as json.Number so amounts can be parsed exactly.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// TransactionRequest is the body of a create or update request.
type TransactionRequest struct {
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Date        string      `json:"date"`
	Category    string      `json:"category"`
}

// Transaction validates the request fields and converts them.
func (req TransactionRequest) Transaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Currency:    core.NormalizeCurrency(req.Currency),
		Date:        date,
		Category:    sanitizeInput(req.Category),
	}
	if tx.Currency != "" {
		if err := core.ValidateCurrency(tx.Currency); err != nil {
			return core.Transaction{}, err
		}
	}
	return tx, nil
}

// BudgetRequest is the body of a budget upsert.
type BudgetRequest struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

func (req BudgetRequest) Record() (core.BudgetRecord, error) {
	d, err := core.ParseDecimal(req.Amount.String())
	if err != nil {
		return core.BudgetRecord{}, err
	}
	return core.BudgetRecord{
		Amount:   d.InexactFloat64(),
		Currency: core.NormalizeCurrency(req.Currency),
	}, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	return t.UTC(), nil
}

// parseMonths reads the months query parameter. Missing or invalid values
// yield zero, leaving the default to the service.
func parseMonths(query url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(query.Get("months")))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseBool reads a boolean flag, treating anything unparsable as false.
func parseBool(query url.Values, name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(query.Get(name)))
	return err == nil && v
}

// sanitizeInput trims whitespace and drops control characters.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s))
}
