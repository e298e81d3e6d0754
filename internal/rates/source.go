package rates

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"fxledger/internal/core"
	"fxledger/internal/log"
)

// Source fetches rate tables from an ordered chain of providers.
// Concurrent fetches for the same base share one upstream round.
type Source struct {
	client    *http.Client
	providers []Provider
	symbols   []string
	group     singleflight.Group
}

// SourceOption customizes a Source.
type SourceOption func(*Source)

// WithHTTPClient sets the client used for provider requests.
func WithHTTPClient(c *http.Client) SourceOption {
	return func(s *Source) { s.client = c }
}

// WithSymbols restricts the currencies requested from providers. No symbols
// means every currency the provider knows.
func WithSymbols(symbols ...string) SourceOption {
	return func(s *Source) { s.symbols = symbols }
}

// NewSource builds a Source trying providers in order.
func NewSource(providers []Provider, opts ...SourceOption) *Source {
	s := &Source{
		client:    &http.Client{Timeout: 10 * time.Second},
		providers: providers,
		symbols:   core.SupportedCurrencies,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the first provider table for base or, when every provider
// fails, the built-in table rebased to base. It never fails.
func (s *Source) Fetch(ctx context.Context, base string) Table {
	res := s.FetchResult(ctx, base)
	if res.OK() {
		return *res.Table
	}
	fallbacks.Inc()
	slog.WarnContext(ctx, "Using built-in rates", log.FieldBase, base, log.FieldError, res.Err)
	return Fallback(base)
}

// FetchResult returns the authoritative outcome for base without falling back.
func (s *Source) FetchResult(ctx context.Context, base string) Result {
	base = core.NormalizeCurrency(base)
	v, _, _ := s.group.Do(base, func() (any, error) {
		return s.fetch(ctx, base), nil
	})
	res := v.(Result)
	if res.Table != nil {
		// callers sharing a flight must not share the map
		t := Table{Base: res.Table.Base, Rates: res.Table.clone(), Assumed: res.Table.Assumed}
		res.Table = &t
	}
	return res
}

func (s *Source) fetch(ctx context.Context, base string) Result {
	if len(s.providers) == 0 {
		return Failed(errors.New("no providers configured"), "none")
	}
	var errs []error
	for _, p := range s.providers {
		res := p.fetch(ctx, s.client, base, s.symbols)
		if res.OK() {
			fetchTotal.WithLabelValues(p.Name, "ok").Inc()
			slog.DebugContext(ctx, "Fetched rates", log.FieldProvider, p.Name, log.FieldBase, base, "count", len(res.Table.Rates))
			return res
		}
		fetchTotal.WithLabelValues(p.Name, "error").Inc()
		slog.WarnContext(ctx, "Rate provider failed", log.FieldProvider, p.Name, log.FieldBase, base, log.FieldError, res.Err)
		errs = append(errs, res.Err)
	}
	return Result{Err: errors.Join(errs...), Provider: s.providers[len(s.providers)-1].Name}
}
