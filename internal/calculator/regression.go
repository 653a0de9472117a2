package calculator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrDegenerate is returned when a regression has no usable variation.
	ErrDegenerate = errors.New("degenerate regression")
	// ErrSingular is returned when a design matrix cannot be inverted.
	ErrSingular = errors.New("singular design matrix")
)

// LinearFit is the ordinary least squares fit y ≈ Alpha + Beta·x.
type LinearFit struct {
	Alpha     float64
	Beta      float64
	RSquared  float64
	Residuals []float64
}

// FitOLS regresses y on x with an intercept.
func FitOLS(y, x []float64) (*LinearFit, error) {
	if len(y) != len(x) {
		return nil, fmt.Errorf("length mismatch: %d vs %d", len(y), len(x))
	}
	if len(y) < 3 {
		return nil, fmt.Errorf("%w: %d observations", ErrDegenerate, len(y))
	}
	_, varX := stat.MeanVariance(x, nil)
	if varX == 0 || !isFinite(varX) {
		return nil, fmt.Errorf("%w: regressor is constant", ErrDegenerate)
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if !isFinite(alpha) || !isFinite(beta) {
		return nil, fmt.Errorf("%w: non-finite coefficients", ErrDegenerate)
	}
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(r2) {
		return nil, fmt.Errorf("%w: response is constant", ErrDegenerate)
	}

	resid := make([]float64, len(y))
	for i := range y {
		resid[i] = y[i] - alpha - beta*x[i]
	}
	return &LinearFit{Alpha: alpha, Beta: beta, RSquared: r2, Residuals: resid}, nil
}

// lsFit is a no-intercept least squares fit with the pieces needed for inference.
type lsFit struct {
	coef *mat.VecDense
	inv  *mat.Dense // (X'X)^-1
	ssr  float64
	nobs int
	k    int
}

func leastSquares(X mat.Matrix, y []float64) (*lsFit, error) {
	m, k := X.Dims()
	if m <= k {
		return nil, fmt.Errorf("%w: %d observations for %d regressors", ErrSingular, m, k)
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	yv := mat.NewVecDense(m, y)
	var xty, coef, fitted mat.VecDense
	xty.MulVec(X.T(), yv)
	coef.MulVec(&inv, &xty)
	fitted.MulVec(X, &coef)

	ssr := 0.0
	for i := 0; i < m; i++ {
		d := y[i] - fitted.AtVec(i)
		ssr += d * d
	}
	return &lsFit{coef: &coef, inv: &inv, ssr: ssr, nobs: m, k: k}, nil
}

// aic matches the Gaussian log-likelihood criterion of a model without a constant.
func (f *lsFit) aic() float64 {
	n := float64(f.nobs)
	return n*(math.Log(2*math.Pi)+math.Log(f.ssr/n)+1) + 2*float64(f.k)
}

// tvalue returns the t-statistic of coefficient i.
func (f *lsFit) tvalue(i int) float64 {
	s2 := f.ssr / float64(f.nobs-f.k)
	return f.coef.AtVec(i) / math.Sqrt(s2*f.inv.At(i, i))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round4 rounds to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
