package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairSentinel/internal/catalog"
	"PairSentinel/internal/metrics"
	"PairSentinel/internal/model"
)

func bars(sym string, n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{Symbol: sym, Period: "60", StartAt: int64(i) * 3600, Close: float64(i + 1)}
	}
	return out
}

func TestCollect_SkipsFailingSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_list.json")
	fetcher := &MockFetcher{
		Data: map[string][]model.Candle{
			"BTCUSDT": bars("BTCUSDT", 40),
			"ETHUSDT": bars("ETHUSDT", 40),
			"NILUSDT": nil,
		},
		Err: map[string]error{"BADUSDT": errors.New("symbol_error")},
	}
	c := NewCollector(fetcher, []string{"BTCUSDT", "BADUSDT", "ETHUSDT", "NILUSDT"}, path, 1000, metrics.New())

	n, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cat, err := catalog.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cat.Symbols())
	assert.Len(t, cat.Closes("BTCUSDT"), 40)
}

func TestCollect_NoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_list.json")
	fetcher := &MockFetcher{Err: map[string]error{"A": errors.New("down"), "B": errors.New("down")}}
	c := NewCollector(fetcher, []string{"A", "B"}, path, 1000, nil)

	_, err := c.Collect(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCollect_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	fetcher := &countingFetcher{fn: func() ([]model.Candle, error) {
		calls++
		return nil, errors.New("timeout")
	}}
	symbols := make([]string, 8)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%d", i)
	}
	c := NewCollector(fetcher, symbols, filepath.Join(t.TempDir(), "p.json"), 1000, nil)

	_, err := c.Collect(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, 5, calls, "calls stop once the breaker trips")
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewCollector(&MockFetcher{}, []string{"A"}, filepath.Join(t.TempDir(), "p.json"), 1000, nil)
	_, err := c.Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingFetcher struct {
	fn func() ([]model.Candle, error)
}

func (c *countingFetcher) Name() string { return "counting" }

func (c *countingFetcher) FetchCandles(context.Context, string) ([]model.Candle, error) {
	return c.fn()
}

func TestFrames(t *testing.T) {
	raw := encodeFrame(`{"m":"a"}`) + encodeFrame("~h~3")
	frames, err := decodeFrames(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"m":"a"}`, "~h~3"}, frames)

	_, err = decodeFrames("garbage")
	assert.Error(t, err)
	_, err = decodeFrames("~m~99~m~short")
	assert.Error(t, err)
	_, err = decodeFrames("~m~x~m~")
	assert.Error(t, err)
}

// fakeChart plays the chart-session side of the protocol.
func fakeChart(seen chan<- []string) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		send := func(payload string) {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(encodeFrame(payload)))
		}
		send(`{"session_id":"x","timestamp":1}`)

		var methods []string
		for len(methods) < 3 {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames, _ := decodeFrames(string(msg))
			for _, f := range frames {
				var m tvMessage
				if json.Unmarshal([]byte(f), &m) == nil {
					methods = append(methods, m.M+" "+string(m.P[len(m.P)-1]))
				}
			}
		}
		seen <- methods

		send("~h~1")
		_, echo, err := conn.ReadMessage()
		if err != nil || string(echo) != encodeFrame("~h~1") {
			return
		}
		send(`{"m":"timescale_update","p":["cs",{"sds_1":{"s":[` +
			`{"i":0,"v":[1700000000000,1,2,0.5,1.5,10]},` +
			`{"i":1,"v":[1700003600,1.5,2,1,null,10]},` +
			`{"i":2,"v":[1700007200,2,3,1.5,2.5,10]}]}}]}`)
		send(`{"m":"series_completed","p":["cs","sds_1","streaming"]}`)
		time.Sleep(100 * time.Millisecond)
	}))
}

func TestTradingViewFetcher(t *testing.T) {
	seen := make(chan []string, 1)
	srv := fakeChart(seen)
	defer srv.Close()

	f := NewTradingViewFetcher(TradingViewConfig{
		Endpoint:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		Exchange:       "BITGET",
		ContractSuffix: ".P",
		Currency:       "XTVCUSDT",
		Resolution:     "60",
		Bars:           5000,
		Timeout:        5 * time.Second,
	})
	assert.Equal(t, "tradingview", f.Name())

	candles, err := f.FetchCandles(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, int64(1700000000), candles[0].StartAt)
	assert.Equal(t, 1.5, candles[0].Close)
	assert.True(t, math.IsNaN(candles[1].Close))
	assert.Equal(t, "BTCUSDT", candles[2].Symbol)

	methods := <-seen
	require.Len(t, methods, 3)
	assert.True(t, strings.HasPrefix(methods[0], "chart_create_session"))
	assert.Contains(t, methods[1], "BITGET:BTCUSDT.P")
	assert.Contains(t, methods[1], "XTVCUSDT")
	assert.Equal(t, "create_series 5000", methods[2])
}

func TestTradingViewFetcher_SymbolError(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(encodeFrame(`{"m":"symbol_error","p":["cs","sds_sym_1","invalid symbol"]}`)))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewTradingViewFetcher(TradingViewConfig{Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"), Timeout: 2 * time.Second})
	_, err := f.FetchCandles(context.Background(), "NOPE")
	assert.ErrorContains(t, err, "symbol_error")
}

func TestYahooFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/%5EGSPC", r.URL.EscapedPath())
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[7200,0,3600],"indicators":{"quote":[{
			"open":[3,1,null],"high":[3,1,null],"low":[3,1,null],"close":[3,null,null]}]}}],"error":null}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher(srv.URL, "", time.Second, map[string]string{"SPX": "^GSPC"})
	candles, err := f.FetchCandles(context.Background(), "SPX")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(0), candles[0].StartAt)
	assert.True(t, math.IsNaN(candles[0].Close))
	assert.Equal(t, 3.0, candles[1].Close)
	assert.Equal(t, "SPX", candles[1].Symbol)
}

func TestYahooFetcher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer srv.Close()

	_, err := NewYahooFetcher(srv.URL, "", time.Second, nil).FetchCandles(context.Background(), "ZZZ")
	assert.ErrorContains(t, err, "No data found")
}
