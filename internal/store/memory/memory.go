// Package memory implements the ledger stores in process memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"fxledger/internal/core"
)

type Store struct {
	mu      sync.Mutex
	txs     map[string][]core.Transaction
	budgets map[string]map[core.MonthKey]core.BudgetRecord
}

func New() *Store {
	return &Store{
		txs:     make(map[string][]core.Transaction),
		budgets: make(map[string]map[core.MonthKey]core.BudgetRecord),
	}
}

// List returns a copy of the user's transactions ordered by date.
func (s *Store) List(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Transaction(nil), s.txs[userID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) Get(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(userID, id); i >= 0 {
		return s.txs[userID][i], nil
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) Create(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.Currency = core.NormalizeCurrency(tx.Currency)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.UserID] = append(s.txs[tx.UserID], tx)
	return tx, nil
}

func (s *Store) Update(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.Currency = core.NormalizeCurrency(tx.Currency)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(tx.UserID, tx.ID)
	if i < 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	s.txs[tx.UserID][i] = tx
	return tx, nil
}

func (s *Store) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(userID, id)
	if i < 0 {
		return core.ErrNotFound
	}
	items := s.txs[userID]
	s.txs[userID] = append(items[:i:i], items[i+1:]...)
	return nil
}

func (s *Store) indexLocked(userID, id string) int {
	for i, tx := range s.txs[userID] {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) ListBudgets(_ context.Context, userID string) (map[core.MonthKey]core.BudgetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[core.MonthKey]core.BudgetRecord, len(s.budgets[userID]))
	for k, v := range s.budgets[userID] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) UpsertBudget(_ context.Context, userID string, month core.MonthKey, b core.BudgetRecord) error {
	if _, err := core.ParseMonthKey(string(month)); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	b.Currency = core.NormalizeCurrency(b.Currency)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.budgets[userID] == nil {
		s.budgets[userID] = make(map[core.MonthKey]core.BudgetRecord)
	}
	s.budgets[userID][month] = b
	return nil
}

func (s *Store) RemoveBudget(_ context.Context, userID string, month core.MonthKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budgets[userID], month)
	return nil
}

func (s *Store) Close() error { return nil }
