package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshotFreshOn(t *testing.T) {
	fetched := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	s := Snapshot{FetchedAt: fetched}

	require.True(t, s.FreshOn(time.Date(2024, 3, 14, 23, 59, 0, 0, time.UTC)))
	require.False(t, s.FreshOn(time.Date(2024, 3, 15, 0, 1, 0, 0, time.UTC)))
	require.False(t, s.FreshOn(time.Date(2023, 3, 14, 9, 0, 0, 0, time.UTC)))
}

func TestSnapshotRateLookup(t *testing.T) {
	s := Snapshot{Rates: map[string]float64{"EUR": 0.9}}

	r, ok := s.Rate("EUR")
	require.True(t, ok)
	require.Equal(t, 0.9, r)

	_, ok = s.Rate("GBP")
	require.False(t, ok)
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "currency_request.json")
	c := NewCache(path)

	// Missing slot: no snapshot, no error.
	_, found, err := c.Load()
	require.NoError(t, err)
	require.False(t, found)

	snap := Snapshot{
		FetchedAt: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
		Base:      "USD",
		Rates:     map[string]float64{"EUR": 0.9, "USD": 1.0, "TRY": 30.0},
	}
	require.NoError(t, c.Store(snap))

	loaded, found, err := c.Load()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "USD", loaded.Base)
	require.Equal(t, snap.Rates, loaded.Rates)
	require.True(t, loaded.FetchedAt.Equal(snap.FetchedAt))
}

func TestCacheEmptySlotIsAMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"currency_api": null, "base_currency": null, "data": {}}`), 0o644))

	_, found, err := NewCache(path).Load()
	require.NoError(t, err)
	require.False(t, found)
}

func TestCacheCorruptSlotErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slot.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, _, err := NewCache(path).Load()
	require.Error(t, err)
}

func TestClientFetch(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"apikey":        q.Get("apikey"),
			"currencies":    q.Get("currencies"),
			"base_currency": q.Get("base_currency"),
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data": {"EUR": 0.9, "USD": 1.0, "TRY": 30.0}}`))
	}))
	defer srv.Close()

	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	c := NewClient(srv.URL, "test-key", func() time.Time { return now })

	snap, err := c.Fetch(context.Background(), "usd")
	require.NoError(t, err)
	require.Equal(t, "USD", snap.Base)
	require.Equal(t, 0.9, snap.Rates["EUR"])
	require.True(t, snap.FetchedAt.Equal(now))

	require.Equal(t, "test-key", gotQuery["apikey"])
	require.Equal(t, "EUR,USD,TRY", gotQuery["currencies"])
	require.Equal(t, "USD", gotQuery["base_currency"])
}

func TestClientFetchRequiresKey(t *testing.T) {
	c := NewClient("http://unused", "", nil)
	_, err := c.Fetch(context.Background(), "USD")
	require.Error(t, err)
	require.Contains(t, err.Error(), "FREE_CURRENCY_API_KEY")
}

func TestClientFetchSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "invalid base"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", nil)
	_, err := c.Fetch(context.Background(), "USD")
	require.Error(t, err)
	require.Contains(t, err.Error(), "API error: 422")
}

func TestClientFetchEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", nil)
	_, err := c.Fetch(context.Background(), "USD")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no rate data")
}
