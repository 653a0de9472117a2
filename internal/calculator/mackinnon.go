package calculator

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// Response-surface coefficients for the residual-based cointegration test with a
// constant and two variables. P-values follow MacKinnon (1994), critical values
// MacKinnon (2010).
var (
	tauMaxC    = 0.92
	tauMinC    = -18.86
	tauStarC   = -2.62
	tauSmallPC = []float64{2.92, 1.5012, 0.039796}
	tauLargePC = []float64{2.1945, 0.64695, -0.29198, -0.042377}

	// rows: 1%, 5%, 10%; columns: β∞, β1, β2
	tauCritC = [3][3]float64{
		{-3.89644, -10.9519, -22.527},
		{-3.33613, -6.1101, -6.823},
		{-3.04445, -4.2412, -2.720},
	}
)

// CointPValue returns the asymptotic p-value of an Engle-Granger τ statistic for a
// two-variable regression with an intercept.
func CointPValue(tau float64) float64 {
	switch {
	case tau > tauMaxC:
		return 1.0
	case tau < tauMinC:
		return 0.0
	}
	coef := tauLargePC
	if tau <= tauStarC {
		coef = tauSmallPC
	}
	return distuv.UnitNormal.CDF(polyval(coef, tau))
}

// CointCriticalValues returns the 1%, 5% and 10% critical values for nobs observations.
func CointCriticalValues(nobs int) [3]float64 {
	inv := 1 / float64(nobs)
	var out [3]float64
	for i, c := range tauCritC {
		out[i] = polyval(c[:], inv)
	}
	return out
}

// polyval evaluates c[0] + c[1]·x + c[2]·x² + ...
func polyval(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}
