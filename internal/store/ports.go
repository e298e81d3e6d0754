// Package store declares the persistence ports of the ledger.
package store

import (
	"context"

	"fxledger/internal/core"
)

// Ports for outbound adapters. Every call is scoped to one user.
type (
	TransactionStore interface {
		// List returns the user's transactions ordered by date.
		List(ctx context.Context, userID string) ([]core.Transaction, error)
		Get(ctx context.Context, userID, id string) (core.Transaction, error)
		// Create stores tx, assigning an ID when it has none.
		Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		// Update replaces an existing transaction. Missing IDs yield core.ErrNotFound.
		Update(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, userID, id string) error
	}

	BudgetStore interface {
		ListBudgets(ctx context.Context, userID string) (map[core.MonthKey]core.BudgetRecord, error)
		UpsertBudget(ctx context.Context, userID string, month core.MonthKey, b core.BudgetRecord) error
		// RemoveBudget deletes the month's budget. Removing an absent month is a no-op.
		RemoveBudget(ctx context.Context, userID string, month core.MonthKey) error
	}

	// Ledger is everything a data backend provides.
	Ledger interface {
		TransactionStore
		BudgetStore
		Close() error
	}
)
