package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"fxledger/internal/rates"
)

// ErrMalformedMessage marks a delivery that can never be processed.
var ErrMalformedMessage = errors.New("malformed rates message")

// RatesRefreshedMessage announces a freshly fetched, authoritative rate table.
// Consumers rebuild the table from it and warm their rate store.
type RatesRefreshedMessage struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	Provider  string             `json:"provider,omitempty"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// NewRatesRefreshedMessage builds a message for table.
func NewRatesRefreshedMessage(table rates.Table, provider string) *RatesRefreshedMessage {
	values := make(map[string]float64, len(table.Rates))
	for code, v := range table.Rates {
		values[code] = v
	}
	return &RatesRefreshedMessage{
		Base:      table.Base,
		Rates:     values,
		Provider:  provider,
		FetchedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RatesRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Table normalizes the carried rates. Tables that would not be accepted
// from a provider are rejected here as well.
func (m *RatesRefreshedMessage) Table() (rates.Table, error) {
	if m.Base == "" || len(m.Rates) == 0 {
		return rates.Table{}, ErrMalformedMessage
	}
	raw := make(rates.RawTable, len(m.Rates)+1)
	for code, v := range m.Rates {
		raw[code] = v
	}
	raw["base"] = m.Base
	t, err := rates.Normalize(raw, m.Base)
	if err != nil {
		return rates.Table{}, errors.Join(ErrMalformedMessage, err)
	}
	if err := t.Validate(t.Base); err != nil {
		return rates.Table{}, errors.Join(ErrMalformedMessage, err)
	}
	return t, nil
}

// RatesRefreshedMessageFromJSON creates a message from JSON bytes
func RatesRefreshedMessageFromJSON(data []byte) (*RatesRefreshedMessage, error) {
	var msg RatesRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrMalformedMessage, err)
	}
	return &msg, nil
}
