package taxrates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/bundle-pricing/internal/catalog"
	"github.com/noah-isme/bundle-pricing/internal/resilience"
	"github.com/noah-isme/bundle-pricing/internal/tax"
)

// HTTPProvider queries an external tax rate service:
//
//	GET {base}/rates?class=standard&country=NL&postcode=1012AB
//
// The response is a JSON array of rates. Results are cached in Redis per
// class and country so the rate service is off the hot path of cart pricing.
type HTTPProvider struct {
	BaseURL string
	Client  resilience.HTTPClient
	Cache   *catalog.Cache
}

// NewHTTPProvider builds a provider with a traced, retrying client behind a
// circuit breaker. cache may be nil.
func NewHTTPProvider(baseURL string, timeout time.Duration, cache *catalog.Cache) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Client: resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   timeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("taxrates"),
			MaxAttempts: 3,
			BaseBackoff: 100 * time.Millisecond,
			Jitter:      0.2,
		},
		Cache: cache,
	}
}

// RatesFor implements tax.RateLookup.
func (p *HTTPProvider) RatesFor(ctx context.Context, class tax.Class, addr tax.Address) ([]tax.Rate, error) {
	key := rateCacheKey(class, addr)
	if p.Cache != nil {
		var cached []tax.Rate
		ok, err := p.Cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}

	q := url.Values{}
	q.Set("class", string(class))
	q.Set("country", addr.Country)
	if addr.PostalCode != "" {
		q.Set("postcode", addr.PostalCode)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/rates?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates for %q: %w", class, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("rate service returned %d for class %q", resp.StatusCode, class)
	}

	var rates []tax.Rate
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return nil, fmt.Errorf("decode rates for %q: %w", class, err)
	}

	if p.Cache != nil {
		_ = p.Cache.SetJSON(ctx, key, rates)
	}
	return rates, nil
}

func rateCacheKey(class tax.Class, addr tax.Address) string {
	return "bundle:taxrates:" + string(class) + ":" + addr.Country + ":" + addr.PostalCode
}
