package strategy

import "errors"

var (
	// ErrInsufficientData marks a symbol or pair with fewer than MinObservations valid closes.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrStatisticalComputation marks a numerical failure inside the regression or unit-root test.
	ErrStatisticalComputation = errors.New("statistical computation failed")
)
