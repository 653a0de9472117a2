// Package catalog holds the per-symbol price histories a screening run works on.
package catalog

import (
	"sort"

	"PairSentinel/internal/model"
)

// Catalog is a read-only view over loaded price series. Symbols are kept in
// lexicographic order so every run iterates them identically.
type Catalog struct {
	symbols []string
	series  map[string]model.PriceSeries
}

// New builds a catalog from raw candle histories. Candles are ordered by start time.
func New(data map[string][]model.Candle) *Catalog {
	c := &Catalog{
		symbols: make([]string, 0, len(data)),
		series:  make(map[string]model.PriceSeries, len(data)),
	}
	for sym, candles := range data {
		sorted := make([]model.Candle, len(candles))
		copy(sorted, candles)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartAt < sorted[j].StartAt })
		c.symbols = append(c.symbols, sym)
		c.series[sym] = model.PriceSeries{Symbol: sym, Candles: sorted}
	}
	sort.Strings(c.symbols)
	return c
}

// Len returns the number of symbols.
func (c *Catalog) Len() int { return len(c.symbols) }

// Symbols returns all symbols in iteration order.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.symbols))
	copy(out, c.symbols)
	return out
}

// Series returns the price series of a symbol.
func (c *Catalog) Series(sym string) (model.PriceSeries, bool) {
	s, ok := c.series[sym]
	return s, ok
}

// Closes returns the valid close prices of a symbol, or nil if unknown.
func (c *Catalog) Closes(sym string) []float64 {
	s, ok := c.series[sym]
	if !ok {
		return nil
	}
	return s.Closes()
}

// Eligible returns, in iteration order, the symbols with at least minObs valid closes.
func (c *Catalog) Eligible(minObs int) []string {
	out := make([]string, 0, len(c.symbols))
	for _, sym := range c.symbols {
		if c.series[sym].Valid() >= minObs {
			out = append(out, sym)
		}
	}
	return out
}
