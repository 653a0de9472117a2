package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"PairSentinel/internal/catalog"
	"PairSentinel/internal/metrics"
	"PairSentinel/internal/model"
)

// ErrNoData is returned when no symbol produced any candles.
var ErrNoData = errors.New("no candle data collected")

// MockFetcher returns fixed candles for development and testing.
type MockFetcher struct {
	Data map[string][]model.Candle
	Err  map[string]error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCandles(_ context.Context, symbol string) ([]model.Candle, error) {
	if err, ok := m.Err[symbol]; ok {
		return nil, err
	}
	candles, ok := m.Data[symbol]
	if !ok {
		return nil, fmt.Errorf("mock: unknown symbol %s", symbol)
	}
	return candles, nil
}

// Collector fetches every configured symbol and writes the price document.
type Collector struct {
	Fetcher    Fetcher
	Symbols    []string
	OutputPath string
	Limiter    *rate.Limiter
	Breaker    *gobreaker.CircuitBreaker
	Metrics    *metrics.Registry
}

// NewCollector creates a Collector that paces requests at rps and stops calling
// the provider for a while after repeated failures.
func NewCollector(fetcher Fetcher, symbols []string, outputPath string, rps float64, m *metrics.Registry) *Collector {
	st := gobreaker.Settings{
		Name:     fetcher.Name(),
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).
				Msg("fetch circuit breaker state changed")
		},
	}
	return &Collector{
		Fetcher:    fetcher,
		Symbols:    symbols,
		OutputPath: outputPath,
		Limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		Breaker:    gobreaker.NewCircuitBreaker(st),
		Metrics:    m,
	}
}

// Collect fetches all symbols, skipping failures, and saves the price document.
// It returns the number of symbols collected.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	logger := log.With().Str("component", "collector").Str("provider", c.Fetcher.Name()).Logger()
	data := make(map[string][]model.Candle, len(c.Symbols))

	for _, sym := range c.Symbols {
		if err := c.Limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("collect cancelled: %w", err)
		}

		out, err := c.Breaker.Execute(func() (any, error) {
			return c.Fetcher.FetchCandles(ctx, sym)
		})
		if err != nil {
			c.Metrics.Fetched(c.Fetcher.Name(), 0, err)
			if ctx.Err() != nil {
				return 0, fmt.Errorf("collect cancelled: %w", ctx.Err())
			}
			logger.Warn().Err(err).Str("symbol", sym).Msg("fetch failed, symbol skipped")
			continue
		}
		candles := out.([]model.Candle)
		if len(candles) == 0 {
			logger.Warn().Str("symbol", sym).Msg("no candles returned, symbol skipped")
			continue
		}
		c.Metrics.Fetched(c.Fetcher.Name(), len(candles), nil)
		data[sym] = candles
		logger.Info().Str("symbol", sym).Int("candles", len(candles)).Msg("symbol collected")
	}

	if len(data) == 0 {
		return 0, ErrNoData
	}
	if err := catalog.Save(c.OutputPath, data); err != nil {
		return 0, fmt.Errorf("save price document: %w", err)
	}
	logger.Info().Int("symbols", len(data)).Int("requested", len(c.Symbols)).
		Str("path", c.OutputPath).Msg("price document saved")
	return len(data), nil
}
