package collector

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"PairSentinel/internal/model"
)

const (
	frameMarker    = "~m~"
	heartbeatToken = "~h~"
	seriesID       = "sds_1"
	symbolID       = "sds_sym_1"
)

// TradingViewConfig describes how symbols are resolved on the chart feed.
type TradingViewConfig struct {
	Endpoint       string
	Exchange       string // e.g. BITGET
	ContractSuffix string // e.g. .P for perpetuals
	Currency       string
	Resolution     string // bar size in minutes, "60" for hourly
	Bars           int
	Timeout        time.Duration
	Proxy          string
}

// TradingViewFetcher reads candle history from the TradingView chart websocket.
type TradingViewFetcher struct {
	cfg    TradingViewConfig
	dialer *websocket.Dialer
}

// NewTradingViewFetcher creates a fetcher with optional proxy support.
func NewTradingViewFetcher(cfg TradingViewConfig) *TradingViewFetcher {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			dialer.Proxy = http.ProxyURL(u)
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TradingViewFetcher{cfg: cfg, dialer: dialer}
}

func (f *TradingViewFetcher) Name() string { return "tradingview" }

// tvMessage is the envelope of every chart-session message.
type tvMessage struct {
	M string            `json:"m"`
	P []json.RawMessage `json:"p"`
}

type tvSeries struct {
	S []struct {
		V []*float64 `json:"v"`
	} `json:"s"`
}

// FetchCandles opens a chart session, requests the series for symbol and collects
// bars until the series completes, the bar limit is reached or the timeout expires.
func (f *TradingViewFetcher) FetchCandles(ctx context.Context, symbol string) ([]model.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	header := http.Header{}
	header.Set("Origin", "https://www.tradingview.com")
	conn, _, err := f.dialer.DialContext(ctx, f.cfg.Endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("tradingview dial: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("tradingview set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	session := newSessionID()
	resolve, err := json.Marshal(map[string]string{
		"symbol":      f.qualified(symbol),
		"adjustment":  "splits",
		"session":     "regular",
		"currency-id": f.cfg.Currency,
	})
	if err != nil {
		return nil, err
	}
	requests := [][]any{
		{"chart_create_session", session, ""},
		{"resolve_symbol", session, symbolID, "=" + string(resolve)},
		{"create_series", session, seriesID, "s1", symbolID, f.cfg.Resolution, f.cfg.Bars},
	}
	for _, req := range requests {
		if err := sendMessage(conn, req[0].(string), req[1:]...); err != nil {
			return nil, err
		}
	}

	logger := log.With().Str("provider", "tradingview").Str("symbol", symbol).Logger()
	var candles []model.Candle
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil && len(candles) > 0 {
				logger.Warn().Int("candles", len(candles)).Msg("timeout before series completed, keeping partial history")
				return candles, nil
			}
			return nil, fmt.Errorf("tradingview read: %w", err)
		}

		payloads, err := decodeFrames(string(raw))
		if err != nil {
			return nil, err
		}
		for _, payload := range payloads {
			if strings.HasPrefix(payload, heartbeatToken) {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(encodeFrame(payload))); err != nil {
					return nil, fmt.Errorf("tradingview heartbeat: %w", err)
				}
				continue
			}
			var msg tvMessage
			if err := json.Unmarshal([]byte(payload), &msg); err != nil {
				// session greeting and other non-chart payloads
				continue
			}
			switch msg.M {
			case "timescale_update":
				bars, err := f.parseSeries(symbol, msg)
				if err != nil {
					logger.Warn().Err(err).Msg("unparsable timescale update")
					continue
				}
				candles = append(candles, bars...)
			case "series_completed":
				return f.limit(candles), nil
			case "symbol_error", "series_error", "critical_error", "protocol_error":
				return nil, fmt.Errorf("tradingview %s: %s", msg.M, payload)
			}
		}
		if f.cfg.Bars > 0 && len(candles) >= f.cfg.Bars {
			return f.limit(candles), nil
		}
	}
}

func (f *TradingViewFetcher) qualified(symbol string) string {
	s := symbol + f.cfg.ContractSuffix
	if f.cfg.Exchange != "" {
		s = f.cfg.Exchange + ":" + s
	}
	return s
}

func (f *TradingViewFetcher) limit(candles []model.Candle) []model.Candle {
	if f.cfg.Bars > 0 && len(candles) > f.cfg.Bars {
		return candles[len(candles)-f.cfg.Bars:]
	}
	return candles
}

// parseSeries decodes [session, {sds_1: {s: [{v: [t, o, h, l, c, vol]}]}}].
func (f *TradingViewFetcher) parseSeries(symbol string, msg tvMessage) ([]model.Candle, error) {
	if len(msg.P) < 2 {
		return nil, errors.New("timescale update without payload")
	}
	var series map[string]tvSeries
	if err := json.Unmarshal(msg.P[1], &series); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	s, ok := series[seriesID]
	if !ok {
		return nil, nil
	}

	out := make([]model.Candle, 0, len(s.S))
	for _, bar := range s.S {
		if len(bar.V) < 5 || bar.V[0] == nil {
			continue
		}
		ts := *bar.V[0]
		if ts > 1e12 {
			ts /= 1000
		}
		out = append(out, model.Candle{
			Symbol:  symbol,
			Period:  f.cfg.Resolution,
			StartAt: int64(ts),
			Open:    value(bar.V[1]),
			High:    value(bar.V[2]),
			Low:     value(bar.V[3]),
			Close:   value(bar.V[4]),
		})
	}
	return out, nil
}

func value(v *float64) float64 {
	if v == nil {
		return nan
	}
	return *v
}

func sendMessage(conn *websocket.Conn, method string, params ...any) error {
	body, err := json.Marshal(map[string]any{"m": method, "p": params})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(encodeFrame(string(body)))); err != nil {
		return fmt.Errorf("tradingview send %s: %w", method, err)
	}
	return nil
}

// encodeFrame wraps a payload as ~m~<len>~m~<payload>.
func encodeFrame(payload string) string {
	return frameMarker + strconv.Itoa(len(payload)) + frameMarker + payload
}

// decodeFrames splits a websocket message into its length-prefixed payloads.
func decodeFrames(raw string) ([]string, error) {
	var out []string
	for len(raw) > 0 {
		if !strings.HasPrefix(raw, frameMarker) {
			return nil, fmt.Errorf("tradingview: malformed frame %q", truncate(raw, 40))
		}
		raw = raw[len(frameMarker):]
		end := strings.Index(raw, frameMarker)
		if end < 0 {
			return nil, fmt.Errorf("tradingview: missing length terminator")
		}
		n, err := strconv.Atoi(raw[:end])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("tradingview: bad frame length %q", raw[:end])
		}
		raw = raw[end+len(frameMarker):]
		if n > len(raw) {
			return nil, fmt.Errorf("tradingview: frame length %d exceeds message", n)
		}
		if n > 0 {
			out = append(out, raw[:n])
		}
		raw = raw[n:]
	}
	return out, nil
}

func newSessionID() string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 12)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return "cs_" + string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
