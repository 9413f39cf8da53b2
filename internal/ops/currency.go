package ops

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/oterdem/mcptab/config"
	"github.com/oterdem/mcptab/internal/rates"
	"github.com/oterdem/mcptab/internal/runtime"
	"github.com/oterdem/mcptab/internal/tabular"
	"github.com/oterdem/mcptab/pkg/mcperr"
)

// RateFetcher is the external side of the currency operations; *rates.Client
// satisfies it, tests substitute a fake.
type RateFetcher interface {
	Fetch(ctx context.Context, base string) (rates.Snapshot, error)
}

// Currency implements the exchange-rate operations: fetching a rate snapshot
// (with a one-slot, same-day disk cache in front of the external API) and
// merging the held snapshot into the active table as derived columns.
type Currency struct {
	Store   *tabular.Store
	Limits  runtime.Limits
	Fetcher RateFetcher
	Cache   *rates.Cache
	Logger  zerolog.Logger
	Clock   func() time.Time

	snapshot *rates.Snapshot
}

// RegisterActions wires the currency actions into a dispatcher.
func (c *Currency) RegisterActions(d *Dispatcher) {
	d.Register("get_currency_data", c.GetCurrencyData)
	d.Register("merge_currencies", c.MergeCurrencies)
}

func (c *Currency) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// GetCurrencyData obtains a rate snapshot for the requested base currency.
// A cached snapshot from the same calendar day short-circuits the external
// fetch regardless of its base; a fetched snapshot overwrites the cache slot.
func (c *Currency) GetCurrencyData(ctx context.Context, params map[string]any) Result {
	base, ok := stringParam(params, "base_currency")
	if !ok || base == "" {
		base = config.DefaultBaseCurrency
	}
	base = strings.ToUpper(base)
	if !supportedCurrency(base) {
		return Errorf(mcperr.Validation, "unsupported base currency %q; supported: %v", base, config.SupportedCurrencies)
	}

	if c.Cache != nil {
		cached, found, err := c.Cache.Load()
		if err != nil {
			c.Logger.Warn().Err(err).Msg("rate cache unreadable, refetching")
		} else if found && cached.FreshOn(c.now()) {
			c.snapshot = &cached
			return TextResult(fmt.Sprintf("Currency data loaded from today's cache (base %s): %s", cached.Base, formatRates(cached)))
		}
	}

	snap, err := c.Fetcher.Fetch(ctx, base)
	if err != nil {
		return Errorf(mcperr.RateFetchFailed, "%v", err)
	}
	if c.Cache != nil {
		if err := c.Cache.Store(snap); err != nil {
			c.Logger.Warn().Err(err).Msg("rate cache write failed")
		}
	}
	c.snapshot = &snap
	return TextResult(fmt.Sprintf("Currency data fetched (base %s): %s", snap.Base, formatRates(snap)))
}

// MergeCurrencies joins the held snapshot onto the active table: a per-row
// rate column looked up from the row's currency code, plus one converted
// column per requested money column (original value times the rate). Unknown
// codes get empty cells in every derived column rather than failing the
// merge. When no snapshot is held yet, a same-day cache slot is adopted
// first, so a restarted process resumes from disk without a refetch.
func (c *Currency) MergeCurrencies(ctx context.Context, params map[string]any) Result {
	if c.snapshot == nil {
		c.loadCachedSnapshot()
	}
	if c.snapshot == nil {
		return ErrorResult(mcperr.NoRates, "no exchange rates loaded; call 'get_currency_data' first")
	}
	snap := *c.snapshot

	currencyCol, ok := stringParam(params, "currency_column")
	if !ok || currencyCol == "" {
		return ErrorResult(mcperr.Validation, "merge_currencies requires params.currency_column")
	}
	moneyCols, ok := stringSliceParam(params, "money_columns")
	if !ok || len(moneyCols) == 0 {
		return ErrorResult(mcperr.Validation, "merge_currencies requires params.money_columns as a list of names")
	}

	t := c.Store.Active()
	if missing := t.MissingColumns(append([]string{currencyCol}, moneyCols...)); len(missing) > 0 {
		return ErrorResult(mcperr.UnknownColumn, (&tabular.UnknownColumnError{Columns: missing, Available: t.Columns()}).Error())
	}
	ci, _ := t.ColumnIndex(currencyCol)

	rateCells := make([]string, t.NumRows())
	rowRates := make([]float64, t.NumRows())
	known := make([]bool, t.NumRows())
	misses := 0
	for r := 0; r < t.NumRows(); r++ {
		code := strings.ToUpper(strings.TrimSpace(t.Cell(r, ci)))
		rate, ok := snap.Rate(code)
		if !ok {
			misses++
			continue
		}
		rateCells[r] = strconv.FormatFloat(rate, 'g', -1, 64)
		rowRates[r] = rate
		known[r] = true
	}

	merged, err := t.WithColumn("rate", rateCells)
	if err != nil {
		return Errorf(mcperr.MergeFailed, "error merging currency data: %v", err)
	}

	var derived []string
	for _, money := range moneyCols {
		mi, _ := t.ColumnIndex(money)
		cells := make([]string, t.NumRows())
		for r := 0; r < t.NumRows(); r++ {
			if !known[r] {
				continue
			}
			amount, ok := t.Float(r, mi)
			if !ok {
				continue
			}
			// Round to micro-units so 200 * 0.9 reads 180, not the raw
			// float product.
			converted := math.Round(amount*rowRates[r]*1e6) / 1e6
			cells[r] = strconv.FormatFloat(converted, 'g', -1, 64)
		}
		name := fmt.Sprintf("%s_in_%s", money, snap.Base)
		merged, err = merged.WithColumn(name, cells)
		if err != nil {
			return Errorf(mcperr.MergeFailed, "error merging currency data: %v", err)
		}
		derived = append(derived, name)
	}
	c.Store.ReplaceActive(merged)

	label := fmt.Sprintf("Currency data merged: added columns 'rate' and %v (base %s).", derived, snap.Base)
	if misses > 0 {
		label += fmt.Sprintf(" %d row(s) had unrecognized currency codes and were left unconverted.", misses)
	}
	bounded, text := tabular.Bound(merged, c.Limits.MaxRows, label)
	return TableResult(bounded, text)
}

// loadCachedSnapshot adopts the disk slot if it holds a same-day snapshot.
func (c *Currency) loadCachedSnapshot() {
	if c.Cache == nil {
		return
	}
	cached, found, err := c.Cache.Load()
	if err != nil {
		c.Logger.Warn().Err(err).Msg("rate cache unreadable")
		return
	}
	if found && cached.FreshOn(c.now()) {
		c.snapshot = &cached
	}
}

func supportedCurrency(code string) bool {
	for _, c := range config.SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

func formatRates(s rates.Snapshot) string {
	parts := make([]string, 0, len(config.SupportedCurrencies))
	for _, code := range config.SupportedCurrencies {
		if r, ok := s.Rate(code); ok {
			parts = append(parts, fmt.Sprintf("%s=%s", code, strconv.FormatFloat(r, 'g', -1, 64)))
		}
	}
	return strings.Join(parts, ", ")
}
