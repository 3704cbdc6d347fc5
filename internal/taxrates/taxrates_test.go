package taxrates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-pricing/internal/tax"
)

func TestStaticFallsBackToDefault(t *testing.T) {
	p := Static{
		Table: map[tax.Class][]tax.Rate{
			"reduced": {{ID: "nl-9", Bps: 900}},
		},
		Default: []tax.Rate{{ID: "nl-21", Bps: 2100}},
	}

	rates, err := p.RatesFor(context.Background(), "reduced", tax.Address{})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, int32(900), rates[0].Bps)

	rates, err = p.RatesFor(context.Background(), "standard", tax.Address{})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "nl-21", rates[0].ID)
}

func TestStaticEmptyDefaultMeansUntaxed(t *testing.T) {
	rates, err := Static{}.RatesFor(context.Background(), "anything", tax.Address{})
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestHTTPProviderFetchesRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rates", r.URL.Path)
		assert.Equal(t, "standard", r.URL.Query().Get("class"))
		assert.Equal(t, "NL", r.URL.Query().Get("country"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"nl-21","bps":2100,"label":"BTW 21%"}]`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, nil)
	rates, err := p.RatesFor(context.Background(), "standard", tax.Address{Country: "NL"})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "nl-21", rates[0].ID)
	assert.Equal(t, int32(2100), rates[0].Bps)
}

func TestHTTPProviderRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"nl-9","bps":900}]`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, nil)
	rates, err := p.RatesFor(context.Background(), "reduced", tax.Address{Country: "NL"})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, 2, calls)
}

func TestHTTPProviderNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, nil)
	_, err := p.RatesFor(context.Background(), "standard", tax.Address{Country: "NL"})
	require.Error(t, err)
}
