package strategy

import (
	"iter"

	"github.com/rs/zerolog/log"

	"PairSentinel/internal/catalog"
	"PairSentinel/internal/model"
)

// Pairs lazily yields every unordered pair of catalog symbols that have at least
// minObs valid closes. Each canonical key is emitted once; symbol i is only paired
// with symbols after it.
func Pairs(cat *catalog.Catalog, minObs int) iter.Seq[model.CandidatePair] {
	return func(yield func(model.CandidatePair) bool) {
		symbols := cat.Symbols()
		closes := make(map[string][]float64, len(symbols))
		eligible := make([]string, 0, len(symbols))
		for _, sym := range symbols {
			c := cat.Closes(sym)
			if len(c) < minObs {
				log.Info().Str("symbol", sym).Int("observations", len(c)).
					Err(ErrInsufficientData).Msg("symbol excluded from pairing")
				continue
			}
			closes[sym] = c
			eligible = append(eligible, sym)
		}

		seen := make(map[model.PairKey]struct{}, CountPairs(len(eligible)))
		seq := 0
		for i, sym1 := range eligible {
			for _, sym2 := range eligible[i+1:] {
				key := model.NewPairKey(sym1, sym2)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}

				pair := model.CandidatePair{
					Key:     key,
					Sym1:    sym1,
					Sym2:    sym2,
					Series1: closes[sym1],
					Series2: closes[sym2],
					Seq:     seq,
				}
				seq++
				if !yield(pair) {
					return
				}
			}
		}
	}
}

// CountPairs returns the number of unordered pairs among n symbols.
func CountPairs(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}
