package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fxledger/internal/rates"
)

// RateSnapshot is a stored rate table with its freshness bounds.
type RateSnapshot struct {
	Key       string
	Table     rates.Table
	FetchedAt time.Time
	ExpiresAt time.Time
}

// RateStore is the rates.Store view of a repository. It is a separate type
// because the repository's Get already serves transactions.
type RateStore struct {
	repo *SQLiteRepository
}

// RateStore returns the snapshot store sharing r's database.
func (r *SQLiteRepository) RateStore() *RateStore { return &RateStore{repo: r} }

// Get implements rates.Store. Expired snapshots are reported as missing.
func (s *RateStore) Get(ctx context.Context, key string) (rates.Table, bool, error) {
	snap, err := s.repo.Snapshot(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return rates.Table{}, false, nil
	}
	if err != nil {
		return rates.Table{}, false, err
	}
	if time.Now().After(snap.ExpiresAt) {
		return rates.Table{}, false, nil
	}
	return snap.Table, true, nil
}

// Set implements rates.Store.
func (s *RateStore) Set(ctx context.Context, key string, t rates.Table, expiresAt time.Time) error {
	body, err := json.Marshal(t.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	_, err = s.repo.db.ExecContext(ctx,
		`INSERT INTO rate_snapshots (key, base, rates, assumed, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET base = excluded.base, rates = excluded.rates, assumed = excluded.assumed,
		 fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		key, t.Base, string(body), t.Assumed,
		time.Now().UTC().Format(timeLayout), expiresAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("store rate snapshot %s: %w", key, err)
	}
	return nil
}

// Snapshot returns the snapshot stored under key regardless of its expiry.
// A missing key yields sql.ErrNoRows.
func (r *SQLiteRepository) Snapshot(ctx context.Context, key string) (RateSnapshot, error) {
	var (
		snap             RateSnapshot
		body             string
		fetched, expires string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT key, base, rates, assumed, fetched_at, expires_at FROM rate_snapshots WHERE key = ?`, key).
		Scan(&snap.Key, &snap.Table.Base, &body, &snap.Table.Assumed, &fetched, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snap, err
		}
		return snap, fmt.Errorf("load rate snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(body), &snap.Table.Rates); err != nil {
		return snap, fmt.Errorf("decode rate snapshot %s: %w", key, err)
	}
	if snap.FetchedAt, err = time.Parse(timeLayout, fetched); err != nil {
		return snap, fmt.Errorf("parse fetched_at of %s: %w", key, err)
	}
	if snap.ExpiresAt, err = time.Parse(timeLayout, expires); err != nil {
		return snap, fmt.Errorf("parse expires_at of %s: %w", key, err)
	}
	return snap, nil
}

// Snapshots lists every stored snapshot, freshest first.
func (r *SQLiteRepository) Snapshots(ctx context.Context) ([]RateSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM rate_snapshots ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list rate snapshots: %w", err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan rate snapshot key: %w", err)
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]RateSnapshot, 0, len(keys))
	for _, k := range keys {
		snap, err := r.Snapshot(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}
