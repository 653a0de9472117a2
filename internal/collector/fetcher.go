package collector

import (
	"context"

	"PairSentinel/internal/model"
)

// Fetcher retrieves the candle history of one symbol.
type Fetcher interface {
	FetchCandles(ctx context.Context, symbol string) ([]model.Candle, error)
	Name() string
}
