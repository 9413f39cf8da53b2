package rates

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Snapshot is one fetched set of exchange rates relative to a base currency.
// A snapshot is trusted for the remainder of the calendar day it was fetched,
// no matter how many merges are requested against it.
type Snapshot struct {
	FetchedAt time.Time
	Base      string
	Rates     map[string]float64
}

// FreshOn reports whether the snapshot was fetched on the same calendar day.
func (s Snapshot) FreshOn(now time.Time) bool {
	fy, fm, fd := s.FetchedAt.Date()
	ny, nm, nd := now.Date()
	return fy == ny && fm == nm && fd == nd
}

// Rate looks up the rate for a currency code. Unknown codes return ok=false;
// the merge operation propagates that as a missing value rather than failing
// the whole row set.
func (s Snapshot) Rate(code string) (float64, bool) {
	r, ok := s.Rates[code]
	return r, ok
}

// slotFile is the on-disk cache format: a single slot, overwritten on every
// successful fetch, never archived.
type slotFile struct {
	CurrencyAPI  *string            `json:"currency_api"`
	BaseCurrency *string            `json:"base_currency"`
	Data         map[string]float64 `json:"data"`
}

// Cache persists the last-fetched snapshot to a single on-disk slot.
type Cache struct {
	path string
}

// NewCache binds the cache to its slot file path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Load reads the slot. A missing or empty slot returns ok=false without
// error; a corrupt slot is an error.
func (c *Cache) Load() (Snapshot, bool, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("rates: read cache slot: %w", err)
	}

	var slot slotFile
	if err := json.Unmarshal(raw, &slot); err != nil {
		return Snapshot{}, false, fmt.Errorf("rates: decode cache slot: %w", err)
	}
	if slot.CurrencyAPI == nil || slot.BaseCurrency == nil || len(slot.Data) == 0 {
		return Snapshot{}, false, nil
	}
	fetchedAt, err := time.Parse(time.RFC3339, *slot.CurrencyAPI)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("rates: decode cache timestamp: %w", err)
	}
	return Snapshot{FetchedAt: fetchedAt, Base: *slot.BaseCurrency, Rates: slot.Data}, true, nil
}

// Store overwrites the slot with the given snapshot.
func (c *Cache) Store(s Snapshot) error {
	ts := s.FetchedAt.Format(time.RFC3339)
	base := s.Base
	slot := slotFile{CurrencyAPI: &ts, BaseCurrency: &base, Data: s.Rates}
	if slot.Data == nil {
		slot.Data = map[string]float64{}
	}
	raw, err := json.MarshalIndent(slot, "", "  ")
	if err != nil {
		return fmt.Errorf("rates: encode cache slot: %w", err)
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return fmt.Errorf("rates: write cache slot: %w", err)
	}
	return nil
}
