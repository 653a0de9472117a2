package model

import (
	"fmt"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
)

// MinObservations is the number of valid closes a series needs before it can be tested.
const MinObservations = 30

// Candle represents a single OHLC bar as produced by the market-data collector.
type Candle struct {
	Symbol  string  `json:"symbol"`
	Period  string  `json:"period"`
	StartAt int64   `json:"start_at"`
	Open    float64 `json:"open"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Close   float64 `json:"close"`
}

type candleJSON struct {
	Symbol  string   `json:"symbol"`
	Period  any      `json:"period"`
	StartAt int64    `json:"start_at"`
	Open    *float64 `json:"open"`
	High    *float64 `json:"high"`
	Low     *float64 `json:"low"`
	Close   *float64 `json:"close"`
}

// UnmarshalJSON decodes a candle. Null prices become NaN and period may be a string or a number.
func (c *Candle) UnmarshalJSON(data []byte) error {
	var raw candleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Symbol = raw.Symbol
	c.StartAt = raw.StartAt
	c.Open = orNaN(raw.Open)
	c.High = orNaN(raw.High)
	c.Low = orNaN(raw.Low)
	c.Close = orNaN(raw.Close)

	switch p := raw.Period.(type) {
	case nil:
		c.Period = ""
	case string:
		c.Period = p
	case float64:
		c.Period = strconv.FormatFloat(p, 'f', -1, 64)
	case json.Number:
		c.Period = p.String()
	default:
		return fmt.Errorf("candle %s: unsupported period %v", raw.Symbol, raw.Period)
	}
	return nil
}

// MarshalJSON encodes missing prices as null.
func (c Candle) MarshalJSON() ([]byte, error) {
	return json.Marshal(candleJSON{
		Symbol:  c.Symbol,
		Period:  c.Period,
		StartAt: c.StartAt,
		Open:    orNil(c.Open),
		High:    orNil(c.High),
		Low:     orNil(c.Low),
		Close:   orNil(c.Close),
	})
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func orNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// PriceSeries is the chronological candle history of one symbol.
type PriceSeries struct {
	Symbol  string
	Candles []Candle
}

// Closes returns the finite close prices in chronological order.
func (p PriceSeries) Closes() []float64 {
	closes := make([]float64, 0, len(p.Candles))
	for _, c := range p.Candles {
		if math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			continue
		}
		closes = append(closes, c.Close)
	}
	return closes
}

// Valid returns the number of finite closes.
func (p PriceSeries) Valid() int {
	n := 0
	for _, c := range p.Candles {
		if !math.IsNaN(c.Close) && !math.IsInf(c.Close, 0) {
			n++
		}
	}
	return n
}
