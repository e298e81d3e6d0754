package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"fxledger/internal/cache"
	"fxledger/internal/core"
	"fxledger/internal/rates"
)

// Defaults applied to proxy queries without base or symbols.
var (
	DefaultProxyBase    = "USD"
	DefaultProxySymbols = []string{"PLN", "USD", "EUR", "GBP"}
)

// staleFor bounds how long a quote can stand in for a failing upstream.
const staleFor = 24 * time.Hour

// ErrRatesUnavailable is returned when upstream failed and nothing is cached.
var ErrRatesUnavailable = errors.New("rates unavailable")

// ProxyQuote is the answer of the rates proxy. Symbols the upstream did not
// report are present with a nil value.
type ProxyQuote struct {
	Base      string              `json:"base"`
	Rates     map[string]*float64 `json:"rates"`
	Timestamp int64               `json:"timestamp"`
	Provider  string              `json:"provider,omitempty"`
	Cached    bool                `json:"cached,omitempty"`
	Stale     bool                `json:"stale,omitempty"`
}

// RatesProxy answers rate queries from a short lived cache in front of the
// provider chain.
type RatesProxy struct {
	fetcher rates.Fetcher
	quotes  *cache.LRUCache[ProxyQuote]
	ttl     time.Duration
	now     func() time.Time
}

// NewRatesProxy creates a proxy caching up to size quotes for ttl.
func NewRatesProxy(fetcher rates.Fetcher, size int, ttl time.Duration) *RatesProxy {
	if size <= 0 {
		size = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RatesProxy{
		fetcher: fetcher,
		quotes:  cache.NewLRUCache[ProxyQuote](size, ttl),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Cache exposes the quote cache for periodic cleanup.
func (p *RatesProxy) Cache() cache.Cleaner { return p.quotes }

// ParseSymbols splits a comma separated symbol list, dropping blanks and
// duplicates. An empty list yields the default symbols.
func ParseSymbols(s string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(s, ",") {
		code := core.NormalizeCurrency(part)
		if code == "" || seen[code] {
			continue
		}
		if err := core.ValidateCurrency(code); err != nil {
			return nil, err
		}
		seen[code] = true
		out = append(out, code)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultProxySymbols...), nil
	}
	return out, nil
}

func quoteKey(base string, symbols []string) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	return base + "|" + strings.Join(sorted, ",")
}

// Quote returns rates of symbols relative to base. Fresh cached quotes are
// served unless force is set. When upstream fails, a stale quote is served if
// one exists.
func (p *RatesProxy) Quote(ctx context.Context, base string, symbols []string, force bool) (ProxyQuote, error) {
	base = core.NormalizeCurrency(base)
	if base == "" {
		base = DefaultProxyBase
	}
	if err := core.ValidateCurrency(base); err != nil {
		return ProxyQuote{}, err
	}
	if len(symbols) == 0 {
		symbols = DefaultProxySymbols
	}
	key := quoteKey(base, symbols)

	if !force {
		if q, _, found := p.quotes.Peek(key); found && p.fresh(q) {
			q.Cached = true
			return q, nil
		}
	}

	res := p.fetcher.FetchResult(ctx, base)
	if !res.OK() {
		if q, _, found := p.quotes.Peek(key); found {
			slog.WarnContext(ctx, "Serving stale rates", "base", base, "error", res.Err)
			q.Cached, q.Stale = true, true
			return q, nil
		}
		return ProxyQuote{}, errors.Join(ErrRatesUnavailable, res.Err)
	}

	now := p.now()
	q := ProxyQuote{
		Base:      base,
		Rates:     make(map[string]*float64, len(symbols)),
		Timestamp: now.UnixMilli(),
		Provider:  res.Provider,
	}
	for _, code := range symbols {
		if v, ok := res.Table.Rate(code); ok {
			q.Rates[code] = &v
		} else {
			q.Rates[code] = nil
		}
	}
	p.quotes.SetWithExpiry(key, q, now.Add(staleFor))
	return q, nil
}

func (p *RatesProxy) fresh(q ProxyQuote) bool {
	return p.now().Sub(time.UnixMilli(q.Timestamp)) < p.ttl
}
