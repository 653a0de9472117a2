package model

import (
	"sort"
	"time"
)

// CointegrationResult is the outcome of an Engle-Granger test on one pair.
type CointegrationResult struct {
	Sym1          string
	Sym2          string
	Cointegrated  bool
	PValue        float64
	TValue        float64 // ADF statistic on the residual
	CValue        float64 // 5% critical value
	HedgeRatio    float64
	ZeroCrossings int
	Observations  int
	Seq           int
}

// Key returns the canonical pair key of the result.
func (r CointegrationResult) Key() PairKey { return NewPairKey(r.Sym1, r.Sym2) }

// WithZeroCrossings returns a copy carrying the given crossing count.
func (r CointegrationResult) WithZeroCrossings(n int) CointegrationResult {
	r.ZeroCrossings = n
	return r
}

// ResultTable is the ranked set of cointegrated pairs produced by one run.
type ResultTable struct {
	GeneratedAt time.Time
	Rows        []CointegrationResult
}

// NewResultTable keeps the cointegrated results and ranks them by zero crossings,
// descending, keeping discovery order for ties.
func NewResultTable(results []CointegrationResult, at time.Time) *ResultTable {
	rows := make([]CointegrationResult, 0, len(results))
	for _, r := range results {
		if r.Cointegrated {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ZeroCrossings != rows[j].ZeroCrossings {
			return rows[i].ZeroCrossings > rows[j].ZeroCrossings
		}
		return rows[i].Seq < rows[j].Seq
	})
	return &ResultTable{GeneratedAt: at, Rows: rows}
}

// Len returns the number of ranked rows.
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Top returns at most n leading rows. n <= 0 returns every row.
func (t *ResultTable) Top(n int) []CointegrationResult {
	if t == nil {
		return nil
	}
	if n <= 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// Keys returns the set of canonical pair keys in the table.
func (t *ResultTable) Keys() map[PairKey]struct{} {
	keys := make(map[PairKey]struct{}, t.Len())
	for _, r := range t.Top(0) {
		keys[r.Key()] = struct{}{}
	}
	return keys
}
