package calculator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ADFResult holds an augmented Dickey-Fuller statistic.
type ADFResult struct {
	Stat    float64
	UsedLag int
	NObs    int
}

// ADFMaxLag is the Schwert upper bound on augmentation lags for n observations,
// capped so the regression keeps at least half of the sample.
func ADFMaxLag(n int) int {
	lag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	return min(n/2-1, lag)
}

// ADF runs the augmented Dickey-Fuller regression without deterministic terms,
//
//	Δx[t] = γ·x[t-1] + Σ φj·Δx[t-j] + e[t]
//
// choosing the lag count by AIC over 0..ADFMaxLag on a common sample and
// refitting with the chosen lag on the full usable sample. Stat is the t-value of γ.
func ADF(x []float64) (*ADFResult, error) {
	n := len(x)
	maxLag := ADFMaxLag(n)
	if maxLag < 0 {
		return nil, fmt.Errorf("%w: %d observations", ErrDegenerate, n)
	}

	dx := make([]float64, n-1)
	for i := range dx {
		dx[i] = x[i+1] - x[i]
	}

	X, y := adfDesign(x, dx, maxLag, maxLag)
	rows, _ := X.Dims()
	bestLag, bestAIC := -1, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		fit, err := leastSquares(X.Slice(0, rows, 0, lag+1), y)
		if err != nil {
			continue
		}
		if aic := fit.aic(); aic < bestAIC || bestLag < 0 {
			bestLag, bestAIC = lag, aic
		}
	}
	if bestLag < 0 {
		return nil, fmt.Errorf("%w: no lag order could be fitted", ErrSingular)
	}

	X, y = adfDesign(x, dx, bestLag, bestLag)
	fit, err := leastSquares(X, y)
	if err != nil {
		return nil, err
	}
	tau := fit.tvalue(0)
	if !isFinite(tau) {
		return nil, fmt.Errorf("%w: non-finite test statistic", ErrDegenerate)
	}
	return &ADFResult{Stat: tau, UsedLag: bestLag, NObs: fit.nobs}, nil
}

// adfDesign builds rows t = from..len(dx)-1 with regressors x[t], Δx[t-1] .. Δx[t-lags].
func adfDesign(x, dx []float64, from, lags int) (*mat.Dense, []float64) {
	rows := len(dx) - from
	X := mat.NewDense(rows, lags+1, nil)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := from + r
		y[r] = dx[t]
		X.Set(r, 0, x[t])
		for j := 1; j <= lags; j++ {
			X.Set(r, j, dx[t-j])
		}
	}
	return X, y
}
