package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairSentinel/internal/metrics"
	"PairSentinel/internal/model"
	"PairSentinel/internal/recorder"
	"PairSentinel/internal/screener"
)

type fakePipeline struct {
	running bool
	last    *screener.Status
	err     error
	started int
}

func (f *fakePipeline) LastStatus() *screener.Status { return f.last }
func (f *fakePipeline) Running() bool                { return f.running }

func (f *fakePipeline) TriggerAsync(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.started++
	return nil
}

func seededRecorder(t *testing.T) *recorder.CSVRecorder {
	t.Helper()
	rec := recorder.NewCSVRecorder(filepath.Join(t.TempDir(), "pairs.csv"))
	table := model.NewResultTable([]model.CointegrationResult{
		{Sym1: "ADAUSDT", Sym2: "DOTUSDT", Cointegrated: true, PValue: 0.0123, TValue: -3.9876, CValue: -3.3456, HedgeRatio: 0.4521, ZeroCrossings: 310},
		{Sym1: "BTCUSDT", Sym2: "ETHUSDT", Cointegrated: true, PValue: 0.0011, TValue: -4.5, CValue: -3.3456, HedgeRatio: 18.25, ZeroCrossings: 412, Seq: 1},
		{Sym1: "LTCUSDT", Sym2: "XRPUSDT", Cointegrated: true, PValue: 0.04, TValue: -3.4, CValue: -3.3456, HedgeRatio: 1.1, ZeroCrossings: 120, Seq: 2},
	}, time.Unix(1700000000, 0))
	require.NoError(t, rec.SaveTable(context.Background(), table))
	return rec
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHealth(t *testing.T) {
	s := NewServer(":0", recorder.NewNoopRecorder(), nil, nil, "", 10)
	w := do(t, s.Handler(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Len(t, w.Header().Get("X-Request-ID"), 8)
}

func TestPairs(t *testing.T) {
	s := NewServer(":0", seededRecorder(t), nil, nil, "", 2)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/api/pairs")
	require.Equal(t, http.StatusOK, w.Code)
	var resp pairsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Pairs, 2)
	assert.Equal(t, 1, resp.Pairs[0].Rank)
	assert.Equal(t, "BTCUSDT", resp.Pairs[0].Sym1)
	assert.Equal(t, "ADAUSDT", resp.Pairs[1].Sym1)

	w = do(t, h, http.MethodGet, "/api/pairs?limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)

	for _, bad := range []string{"-1", "ten"} {
		w = do(t, h, http.MethodGet, "/api/pairs?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}

	w = do(t, h, http.MethodPost, "/api/pairs")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPairs_NoTable(t *testing.T) {
	rec := recorder.NewCSVRecorder(filepath.Join(t.TempDir(), "pairs.csv"))
	h := NewServer(":0", rec, nil, nil, "", 5).Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/pairs").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/download/pairs.csv").Code)

	w := do(t, h, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No result table yet.")
}

func TestStatusAndRun(t *testing.T) {
	p := &fakePipeline{
		running: true,
		last: &screener.Status{OK: true, Reason: "1 cointegrated pairs out of 3 tested", Report: &screener.Report{
			RunID: "abc", Duration: 2 * time.Second, PairsTested: 3, Cointegrated: 1,
		}},
	}
	h := NewServer(":0", recorder.NewNoopRecorder(), p, nil, "", 5).Handler()

	w := do(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	var st statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Running)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "abc", st.LastRun.RunID)
	assert.Equal(t, int64(2000), st.LastRun.DurationMS)

	w = do(t, h, http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, p.started)

	p.err = screener.ErrRunInProgress
	w = do(t, h, http.MethodPost, "/api/run")
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/run").Code)
}

func TestRun_NoPipeline(t *testing.T) {
	h := NewServer(":0", recorder.NewNoopRecorder(), nil, nil, "", 5).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/api/run").Code)

	w := do(t, h, http.MethodGet, "/api/status")
	assert.JSONEq(t, `{"running":false,"last_run":null}`, w.Body.String())
}

func TestDownloads(t *testing.T) {
	rec := seededRecorder(t)
	prices := filepath.Join(t.TempDir(), "price_list.json")
	h := NewServer(":0", rec, nil, nil, prices, 5).Handler()

	w := do(t, h, http.MethodGet, "/download/prices.json")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, os.WriteFile(prices, []byte(`{"BTCUSDT":[]}`), 0o644))
	w = do(t, h, http.MethodGet, "/download/prices.json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"BTCUSDT":[]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/download/pairs.csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cointegrated_pairs.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(recorder.Columns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "BTCUSDT,ETHUSDT,"))
}

func TestIndex(t *testing.T) {
	p := &fakePipeline{last: &screener.Status{OK: false, Reason: "data error: <missing>"}}
	h := NewServer(":0", seededRecorder(t), p, nil, "", 5).Handler()

	w := do(t, h, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "BTCUSDT/ETHUSDT")
	assert.Contains(t, body, "3 cointegrated pairs")
	assert.Contains(t, body, "Last run: failed")
	assert.Contains(t, body, "&lt;missing&gt;")
}

func TestMetricsAndNotFound(t *testing.T) {
	m := metrics.New()
	m.ObserveRun(true, time.Second, 4)
	h := NewServer(":0", recorder.NewNoopRecorder(), nil, m, "", 5).Handler()

	w := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pairsentinel_cointegrated_pairs 4")

	w = do(t, h, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}
