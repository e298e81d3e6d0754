package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fxledger/internal/core"
)

// State is the lifecycle of the table held by a Coordinator.
type State int

const (
	Idle State = iota
	// FetchingWithFallback serves an optimistic table derived from the last
	// known one (or the built-in rates) while the authoritative fetch runs.
	FetchingWithFallback
	// Settled means the table is authoritative or rebased from the last
	// authoritative one after a failed fetch.
	Settled
	// Errored means the fetch failed and no table existed beforehand.
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchingWithFallback:
		return "fetching"
	case Settled:
		return "settled"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is a consistent view of a Coordinator. The table it points to is
// never modified.
type Snapshot struct {
	Currency   string `json:"currency"`
	Table      *Table `json:"table,omitempty"`
	State      State  `json:"state"`
	Generation uint64 `json:"generation"`
	// Pending is true while the fetch of Generation is in flight.
	Pending bool `json:"pending"`
}

// Available reports whether the snapshot can be used for conversions.
func (s Snapshot) Available() bool { return s.Table != nil && s.State != Errored }

// Fetcher returns authoritative tables; *Source implements it.
type Fetcher interface {
	FetchResult(ctx context.Context, base string) Result
}

// Coordinator tracks the display currency and its table. Every Select starts
// a new fetch generation; only the result of the latest generation is ever
// applied, whatever order fetches complete in.
type Coordinator struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	gen     uint64
	current Snapshot
	good    *Table
	changed chan struct{}
	subs    map[chan Snapshot]struct{}

	inflight sync.WaitGroup
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithStore sets the store authoritative tables are kept in.
func WithStore(s Store) CoordinatorOption {
	return func(c *Coordinator) { c.store = s }
}

// WithTTL sets how long stored tables stay fresh.
func WithTTL(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.ttl = d }
}

// WithFetchTimeout bounds each fetch.
func WithFetchTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator returns an idle Coordinator fetching through f.
func NewCoordinator(f Fetcher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		fetcher: f,
		ttl:     5 * time.Minute,
		timeout: 10 * time.Second,
		now:     time.Now,
		changed: make(chan struct{}),
		subs:    make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewMemoryStore(64, c.ttl)
	}
	return c
}

// Select switches the display currency. It publishes an optimistic table at
// once, starts the authoritative fetch in the background and returns the
// generation of that fetch.
func (c *Coordinator) Select(ctx context.Context, currency string) uint64 {
	currency = core.NormalizeCurrency(currency)
	stored, hit := c.lookup(ctx, currency)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	g := c.gen
	hadTable := hit || c.good != nil

	var optimistic Table
	switch {
	case hit:
		optimistic = stored.Rebase(currency)
	case c.current.Table != nil:
		optimistic = c.current.Table.Rebase(currency)
	default:
		optimistic = Fallback(currency)
	}

	c.publishLocked(Snapshot{
		Currency:   currency,
		Table:      &optimistic,
		State:      FetchingWithFallback,
		Generation: g,
		Pending:    true,
	})
	selections.Inc()

	c.inflight.Add(1)
	go c.fetch(g, currency, hadTable)
	return g
}

func (c *Coordinator) lookup(ctx context.Context, currency string) (Table, bool) {
	t, ok, err := c.store.Get(ctx, StoreKey(currency))
	if err != nil {
		slog.WarnContext(ctx, "Rate store lookup failed", "currency", currency, "error", err)
		return Table{}, false
	}
	return t, ok && !t.IsZero()
}

// fetch runs with its own deadline: callers going away never cancel it.
func (c *Coordinator) fetch(g uint64, currency string, hadTable bool) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	table, err := authoritative(c.fetcher.FetchResult(ctx, currency), currency)

	c.mu.Lock()
	if g != c.gen {
		latest := c.gen
		c.mu.Unlock()
		staleDiscards.Inc()
		slog.Debug("Discarding rates", "reason", ErrStaleResult, "generation", g, "latest", latest, "currency", currency)
		return
	}

	snap := c.current
	snap.Pending = false
	if err != nil {
		// The optimistic table was rebased from an authoritative one
		// whenever hadTable is set.
		snap.State = Settled
		if !hadTable {
			snap.State = Errored
		}
		c.publishLocked(snap)
		c.mu.Unlock()
		slog.Warn("Rates unavailable from providers", "currency", currency, "generation", g, "state", snap.State, "error", err)
		return
	}

	c.good = &table
	snap.Table = &table
	snap.State = Settled
	c.publishLocked(snap)
	c.mu.Unlock()

	if err := c.store.Set(ctx, StoreKey(currency), table, c.now().Add(c.ttl)); err != nil {
		slog.Warn("Failed to store rates", "currency", currency, "error", err)
	}
}

// authoritative turns a fetch outcome into a table for currency. Provider
// failures count as incomplete tables.
func authoritative(res Result, currency string) (Table, error) {
	if !res.OK() {
		return Table{}, fmt.Errorf("%w: %v", ErrIncompleteRateTable, res.Err)
	}
	t := res.Table.Rebase(currency)
	if err := t.Validate(currency); err != nil {
		return Table{}, err
	}
	return t, nil
}

func (c *Coordinator) publishLocked(s Snapshot) {
	c.current = s
	close(c.changed)
	c.changed = make(chan struct{})
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Snapshot returns the current view.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Generation returns the latest generation started.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Subscribe returns a channel receiving every published snapshot. Slow
// readers only see the latest one. The returned func unsubscribes.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

// Wait blocks until generation g is no longer in flight, either because its
// fetch completed or because a newer Select superseded it, and returns the
// snapshot current at that point. It returns ctx.Err() with the current
// snapshot when ctx ends first.
func (c *Coordinator) Wait(ctx context.Context, g uint64) (Snapshot, error) {
	for {
		c.mu.Lock()
		snap, changed := c.current, c.changed
		c.mu.Unlock()

		if snap.Generation != g || !snap.Pending {
			return snap, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Close waits for in-flight fetches to finish.
func (c *Coordinator) Close() {
	c.inflight.Wait()
}
