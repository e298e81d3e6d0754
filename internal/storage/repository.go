// Package storage implements the ledger stores and the rate snapshot store
// on SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fxledger/internal/core"

	_ "modernc.org/sqlite"
)

// fixed width keeps lexical order equal to time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const txColumns = `id, user_id, description, amount, currency, date, category`

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY date, created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, err
}

func (r *SQLiteRepository) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.Currency = core.NormalizeCurrency(tx.Currency)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Description, tx.Amount, tx.Currency, tx.Date.UTC().Format(timeLayout), tx.Category)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"user", tx.UserID,
		"amount", tx.Amount,
		"currency", tx.Currency)
	return tx, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.Currency = core.NormalizeCurrency(tx.Currency)

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET description = ?, amount = ?, currency = ?, date = ?, category = ?
		 WHERE user_id = ? AND id = ?`,
		tx.Description, tx.Amount, tx.Currency, tx.Date.UTC().Format(timeLayout), tx.Category, tx.UserID, tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if err := expectRow(res); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return expectRow(res)
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) (map[core.MonthKey]core.BudgetRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT month, amount, currency FROM budgets WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := make(map[core.MonthKey]core.BudgetRecord)
	for rows.Next() {
		var (
			month string
			b     core.BudgetRecord
		)
		if err := rows.Scan(&month, &b.Amount, &b.Currency); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out[core.MonthKey(month)] = b
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, userID string, month core.MonthKey, b core.BudgetRecord) error {
	if _, err := core.ParseMonthKey(string(month)); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, month, amount, currency) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, month) DO UPDATE SET amount = excluded.amount, currency = excluded.currency`,
		userID, string(month), b.Amount, core.NormalizeCurrency(b.Currency))
	if err != nil {
		return fmt.Errorf("upsert budget %s: %w", month, err)
	}
	return nil
}

func (r *SQLiteRepository) RemoveBudget(ctx context.Context, userID string, month core.MonthKey) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = ? AND month = ?`, userID, string(month)); err != nil {
		return fmt.Errorf("remove budget %s: %w", month, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx   core.Transaction
		date string
	)
	if err := s.Scan(&tx.ID, &tx.UserID, &tx.Description, &tx.Amount, &tx.Currency, &date, &tx.Category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tx, err
		}
		return tx, fmt.Errorf("scan transaction: %w", err)
	}
	d, err := time.Parse(timeLayout, date)
	if err != nil {
		return tx, fmt.Errorf("parse date of transaction %s: %w", tx.ID, err)
	}
	tx.Date = d
	return tx, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
