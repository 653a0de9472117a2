package strategy

import (
	"fmt"
	"math"

	"PairSentinel/internal/calculator"
	"PairSentinel/internal/model"
)

// Significance is the p-value threshold for the cointegration verdict.
const Significance = 0.05

// sqrtEps mirrors the collinearity tolerance used for the first-stage regression.
var sqrtEps = math.Sqrt(2.220446049250313e-16)

// Evaluate runs the Engle-Granger two-step test of s1 on s2.
//
// Both series are cut to their common prefix. Fewer than model.MinObservations
// aligned points yield a non-cointegrated result with p-value 1 and no error.
// Numerical failures are reported as ErrStatisticalComputation.
func Evaluate(sym1, sym2 string, s1, s2 []float64) (*model.CointegrationResult, error) {
	res, _, err := evaluate(sym1, sym2, s1, s2)
	return res, err
}

// evaluate also returns the unrounded hedge ratio used to form the spread.
func evaluate(sym1, sym2 string, s1, s2 []float64) (*model.CointegrationResult, float64, error) {
	s1, s2 = model.TrimToShorter(s1, s2)
	n := len(s1)
	if n < model.MinObservations {
		return &model.CointegrationResult{Sym1: sym1, Sym2: sym2, PValue: 1.0, Observations: n}, 0, nil
	}

	// Step 1: hedge ratio from s1 = α + β·s2.
	fit, err := calculator.FitOLS(s1, s2)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s/%s: %w", ErrStatisticalComputation, sym1, sym2, err)
	}
	if fit.RSquared >= 1-100*sqrtEps {
		return nil, 0, fmt.Errorf("%w: %s/%s: series are almost perfectly collinear", ErrStatisticalComputation, sym1, sym2)
	}

	// Step 2: unit-root test on the residual.
	adf, err := calculator.ADF(fit.Residuals)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s/%s: %w", ErrStatisticalComputation, sym1, sym2, err)
	}
	pValue := calculator.CointPValue(adf.Stat)
	crit := calculator.CointCriticalValues(n - 1)[1]
	if math.IsNaN(pValue) {
		return nil, 0, fmt.Errorf("%w: %s/%s: p-value is undefined", ErrStatisticalComputation, sym1, sym2)
	}

	return &model.CointegrationResult{
		Sym1:         sym1,
		Sym2:         sym2,
		Cointegrated: pValue < Significance && adf.Stat < crit,
		PValue:       calculator.Round4(pValue),
		TValue:       calculator.Round4(adf.Stat),
		CValue:       calculator.Round4(crit),
		HedgeRatio:   calculator.Round4(fit.Beta),
		Observations: n,
	}, fit.Beta, nil
}

// EvaluatePair tests a candidate pair and, when it is cointegrated, attaches the
// zero-crossing count of its spread.
func EvaluatePair(p model.CandidatePair) (*model.CointegrationResult, error) {
	s1, s2 := p.Aligned()
	res, hedge, err := evaluate(p.Sym1, p.Sym2, s1, s2)
	if err != nil {
		return nil, err
	}
	res.Seq = p.Seq
	if !res.Cointegrated {
		return res, nil
	}

	analysis := AnalyzeSpread(s1, s2, hedge)
	out := res.WithZeroCrossings(analysis.ZeroCrossings)
	return &out, nil
}
