package strategy

import "PairSentinel/internal/calculator"

// SpreadAnalysis holds the series derived from a tested pair.
type SpreadAnalysis struct {
	Spread        []float64
	ZeroCrossings int
	ZScore        []float64
}

// AnalyzeSpread builds the spread s1 - hedge·s2, counts its zero crossings and
// computes its rolling z-score.
func AnalyzeSpread(s1, s2 []float64, hedge float64) SpreadAnalysis {
	spread := calculator.Spread(s1, s2, hedge)
	return SpreadAnalysis{
		Spread:        spread,
		ZeroCrossings: calculator.ZeroCrossings(spread),
		ZScore:        calculator.RollingZScore(spread, calculator.ZScoreWindow),
	}
}
