package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"fxledger/internal/core"
)

const maxBodySize = 1 << 20

// Provider describes one upstream rate API: how to address it and where the
// rates live in its JSON answer.
type Provider struct {
	Name string
	// URL builds the request address for base and symbols.
	URL func(base string, symbols []string) string
	// RatesPath locates the object of rates, e.g. "$.rates".
	RatesPath string
	// BasePath optionally locates the base echoed by the provider.
	BasePath string
}

// ExchangerateHost addresses an exchangerate.host compatible endpoint.
func ExchangerateHost(endpoint, accessKey string) Provider {
	endpoint = strings.TrimRight(endpoint, "/")
	return Provider{
		Name: "exchangerate.host",
		URL: func(base string, symbols []string) string {
			q := url.Values{}
			q.Set("base", base)
			if len(symbols) > 0 {
				q.Set("symbols", strings.Join(symbols, ","))
			}
			if accessKey != "" {
				q.Set("access_key", accessKey)
			}
			return endpoint + "/latest?" + q.Encode()
		},
		RatesPath: "$.rates",
		BasePath:  "$.base",
	}
}

// Frankfurter addresses a frankfurter.app compatible endpoint.
func Frankfurter(endpoint string) Provider {
	endpoint = strings.TrimRight(endpoint, "/")
	return Provider{
		Name: "frankfurter",
		URL: func(base string, symbols []string) string {
			q := url.Values{}
			q.Set("from", base)
			if len(symbols) > 0 {
				q.Set("to", strings.Join(symbols, ","))
			}
			return endpoint + "/latest?" + q.Encode()
		},
		RatesPath: "$.rates",
		BasePath:  "$.base",
	}
}

// Result is the outcome of asking a provider for rates: exactly one of Table
// and Err is set.
type Result struct {
	Table    *Table
	Err      error
	Provider string
}

// Ok wraps a successfully decoded table.
func Ok(t Table, provider string) Result {
	return Result{Table: &t, Provider: provider}
}

// Failed wraps a provider failure as ErrRateFetchFailed.
func Failed(err error, provider string) Result {
	return Result{Err: fmt.Errorf("%w: %s: %v", ErrRateFetchFailed, provider, err), Provider: provider}
}

// OK reports whether r carries a table.
func (r Result) OK() bool { return r.Err == nil && r.Table != nil }

// fetch asks p for rates relative to base.
func (p Provider) fetch(ctx context.Context, client *http.Client, base string, symbols []string) Result {
	var body any
	if err := getJSON(ctx, client, p.URL(base, symbols), &body); err != nil {
		return Failed(err, p.Name)
	}
	return p.decode(body, base)
}

// decode extracts the rates of a decoded JSON answer. A body without a
// rates object fails as a whole.
func (p Provider) decode(body any, base string) Result {
	v, err := pick(p.RatesPath, body)
	if err != nil {
		return Failed(err, p.Name)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Failed(fmt.Errorf("%s is not an object", p.RatesPath), p.Name)
	}

	raw := make(RawTable, len(obj)+1)
	for k, val := range obj {
		raw[k] = val
	}
	raw["base"] = base
	if p.BasePath != "" {
		if echoed, err := pick(p.BasePath, body); err == nil {
			if s, ok := echoed.(string); ok && s != "" {
				raw["base"] = s
			}
		}
	}

	base = core.NormalizeCurrency(base)
	table, err := Normalize(raw, base)
	if err != nil {
		return Failed(err, p.Name)
	}
	table.Rates[base] = 1
	return Ok(table, p.Name)
}

// pick evaluates a JSONPath expression and unwraps single element answers.
func pick(path string, body any) (any, error) {
	v, err := jsonpath.Get(path, body)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", path, err)
	}
	if list, ok := v.([]any); ok && len(list) == 1 {
		v = list[0]
	}
	return v, nil
}

// getJSON performs a GET request and decodes the JSON answer into data.
func getJSON(ctx context.Context, client *http.Client, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s%s: %s", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(data); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}
