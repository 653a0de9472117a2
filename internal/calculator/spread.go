package calculator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ZScoreWindow is the default rolling window for spread normalisation.
const ZScoreWindow = 21

// Spread returns s1 - hedge·s2. The regression intercept is not subtracted.
func Spread(s1, s2 []float64, hedge float64) []float64 {
	n := min(len(s1), len(s2))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = s1[i] - hedge*s2[i]
	}
	return out
}

// ZeroCrossings counts positions where the sign differs from the previous one.
// Zero is its own sign class, so moving onto or off an exact zero counts.
func ZeroCrossings(spread []float64) int {
	n := 0
	for i := 1; i < len(spread); i++ {
		if sign(spread[i]) != sign(spread[i-1]) {
			n++
		}
	}
	return n
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// RollingZScore normalises each value by the mean and sample standard deviation of
// the trailing window (at least one observation). Undefined or zero deviation yields 0.
func RollingZScore(spread []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	z := make([]float64, len(spread))
	for t := range spread {
		lo := max(0, t-window+1)
		w := spread[lo : t+1]
		if len(w) < 2 {
			continue
		}
		mean, std := stat.MeanStdDev(w, nil)
		if std == 0 || math.IsNaN(std) {
			continue
		}
		z[t] = (spread[t] - mean) / std
	}
	return z
}
