package ops

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/oterdem/mcptab/internal/rates"
	"github.com/oterdem/mcptab/internal/tabular"
)

type fakeFetcher struct {
	snapshot rates.Snapshot
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, base string) (rates.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return rates.Snapshot{}, f.err
	}
	s := f.snapshot
	s.Base = base
	return s, nil
}

func usdSnapshot(at time.Time) rates.Snapshot {
	return rates.Snapshot{
		FetchedAt: at,
		Base:      "USD",
		Rates:     map[string]float64{"USD": 1.0, "EUR": 0.9, "TRY": 30.0},
	}
}

func currencyStore(t *testing.T) *tabular.Store {
	t.Helper()
	tbl, err := tabular.New(
		[]string{"Currency", "amount"},
		[][]string{
			{"USD", "100"},
			{"EUR", "200"},
			{"TRY", "300"},
		},
	)
	require.NoError(t, err)
	return tabular.NewStore(tbl)
}

func newCurrency(t *testing.T, store *tabular.Store, fetcher RateFetcher, now time.Time) *Currency {
	t.Helper()
	return &Currency{
		Store:   store,
		Limits:  testLimits(),
		Fetcher: fetcher,
		Cache:   rates.NewCache(filepath.Join(t.TempDir(), "currency_request.json")),
		Logger:  zerolog.Nop(),
		Clock:   func() time.Time { return now },
	}
}

func TestMergeCurrenciesMultipliesByRate(t *testing.T) {
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	store := currencyStore(t)
	c := newCurrency(t, store, &fakeFetcher{snapshot: usdSnapshot(now)}, now)
	ctx := context.Background()

	res := c.GetCurrencyData(ctx, map[string]any{"base_currency": "USD"})
	require.False(t, res.IsError())

	res = c.MergeCurrencies(ctx, map[string]any{
		"currency_column": "Currency",
		"money_columns":   []any{"amount"},
	})
	require.False(t, res.IsError())

	merged := store.Active()
	idx, ok := merged.ColumnIndex("amount_in_USD")
	require.True(t, ok)
	require.Equal(t, "100", merged.Cell(0, idx))
	require.Equal(t, "180", merged.Cell(1, idx))
	require.Equal(t, "9000", merged.Cell(2, idx))

	rateIdx, ok := merged.ColumnIndex("rate")
	require.True(t, ok)
	require.Equal(t, "0.9", merged.Cell(1, rateIdx))
}

func TestMergeCurrenciesRequiresSnapshot(t *testing.T) {
	store := currencyStore(t)
	c := newCurrency(t, store, &fakeFetcher{}, time.Now())

	res := c.MergeCurrencies(context.Background(), map[string]any{
		"currency_column": "Currency",
		"money_columns":   []any{"amount"},
	})
	require.True(t, res.IsError())
	require.Contains(t, res.Render(), "NO_RATES")
}

func TestMergeCurrenciesAdoptsSameDayCacheSlot(t *testing.T) {
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	store := currencyStore(t)
	fetcher := &fakeFetcher{}
	c := newCurrency(t, store, fetcher, now)

	// A fresh slot on disk, as left behind by a previous process: merging
	// without a prior get_currency_data resumes from it, no fetch.
	require.NoError(t, c.Cache.Store(usdSnapshot(now)))

	res := c.MergeCurrencies(context.Background(), map[string]any{
		"currency_column": "Currency",
		"money_columns":   []any{"amount"},
	})
	require.False(t, res.IsError())
	require.Equal(t, 0, fetcher.calls)

	merged := store.Active()
	idx, ok := merged.ColumnIndex("amount_in_USD")
	require.True(t, ok)
	require.Equal(t, "180", merged.Cell(1, idx))
}

func TestMergeCurrenciesIgnoresStaleCacheSlot(t *testing.T) {
	yesterday := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	today := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	store := currencyStore(t)
	c := newCurrency(t, store, &fakeFetcher{}, today)
	require.NoError(t, c.Cache.Store(usdSnapshot(yesterday)))

	res := c.MergeCurrencies(context.Background(), map[string]any{
		"currency_column": "Currency",
		"money_columns":   []any{"amount"},
	})
	require.True(t, res.IsError())
	require.Contains(t, res.Render(), "NO_RATES")
}

func TestMergeCurrenciesUnknownCodeLeavesRowUnconverted(t *testing.T) {
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	tbl, err := tabular.New(
		[]string{"Currency", "amount"},
		[][]string{{"USD", "100"}, {"XXX", "200"}},
	)
	require.NoError(t, err)
	store := tabular.NewStore(tbl)
	c := newCurrency(t, store, &fakeFetcher{snapshot: usdSnapshot(now)}, now)
	ctx := context.Background()

	res := c.GetCurrencyData(ctx, nil)
	require.False(t, res.IsError())

	res = c.MergeCurrencies(ctx, map[string]any{
		"currency_column": "Currency",
		"money_columns":   []any{"amount"},
	})
	require.False(t, res.IsError())
	require.Contains(t, res.Text, "1 row(s) had unrecognized currency codes")

	merged := store.Active()
	idx, _ := merged.ColumnIndex("amount_in_USD")
	require.Equal(t, "100", merged.Cell(0, idx))
	require.Equal(t, "", merged.Cell(1, idx))
}

func TestMergeCurrenciesUnknownColumn(t *testing.T) {
	now := time.Now()
	store := currencyStore(t)
	c := newCurrency(t, store, &fakeFetcher{snapshot: usdSnapshot(now)}, now)
	ctx := context.Background()

	res := c.GetCurrencyData(ctx, nil)
	require.False(t, res.IsError())

	res = c.MergeCurrencies(ctx, map[string]any{
		"currency_column": "Currency",
		"money_columns":   []any{"price"},
	})
	require.True(t, res.IsError())
	require.Contains(t, res.Render(), "UNKNOWN_COLUMN")
	require.Contains(t, res.Render(), "[price]")
}

func TestGetCurrencyDataSameDayCacheShortCircuits(t *testing.T) {
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	store := currencyStore(t)
	fetcher := &fakeFetcher{snapshot: usdSnapshot(now)}
	c := newCurrency(t, store, fetcher, now)
	ctx := context.Background()

	res := c.GetCurrencyData(ctx, nil)
	require.False(t, res.IsError())
	require.Equal(t, 1, fetcher.calls)

	// Same calendar day: served from the cache slot, no second fetch.
	res = c.GetCurrencyData(ctx, nil)
	require.False(t, res.IsError())
	require.Contains(t, res.Text, "loaded from today's cache")
	require.Equal(t, 1, fetcher.calls)
}

func TestGetCurrencyDataStaleCacheRefetches(t *testing.T) {
	yesterday := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	today := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	store := currencyStore(t)
	fetcher := &fakeFetcher{snapshot: usdSnapshot(today)}

	c := newCurrency(t, store, fetcher, today)
	require.NoError(t, c.Cache.Store(usdSnapshot(yesterday)))

	res := c.GetCurrencyData(context.Background(), nil)
	require.False(t, res.IsError())
	require.Contains(t, res.Text, "Currency data fetched")
	require.Equal(t, 1, fetcher.calls)
}

func TestGetCurrencyDataFetchFailure(t *testing.T) {
	store := currencyStore(t)
	c := newCurrency(t, store, &fakeFetcher{err: errors.New("rates: API error: 500 - boom")}, time.Now())

	res := c.GetCurrencyData(context.Background(), nil)
	require.True(t, res.IsError())
	require.Contains(t, res.Render(), "RATE_FETCH_FAILED")
	require.Contains(t, res.Render(), "API error: 500")
}

func TestGetCurrencyDataRejectsUnsupportedBase(t *testing.T) {
	store := currencyStore(t)
	c := newCurrency(t, store, &fakeFetcher{}, time.Now())

	res := c.GetCurrencyData(context.Background(), map[string]any{"base_currency": "GBP"})
	require.True(t, res.IsError())
	require.Contains(t, res.Render(), "VALIDATION")
}
