package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairSentinel/internal/catalog"
	"PairSentinel/internal/collector"
	"PairSentinel/internal/model"
	"PairSentinel/internal/notifier"
	"PairSentinel/internal/recorder"
	"PairSentinel/internal/screener"
)

type captureNotifier struct {
	mu      sync.Mutex
	reports []notifier.Report
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) SendReport(_ context.Context, r notifier.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
	return nil
}

func (c *captureNotifier) all() []notifier.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notifier.Report(nil), c.reports...)
}

func candles(sym string, closes []float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{Symbol: sym, Period: "60", StartAt: int64(i) * 3600, Close: c}
	}
	return out
}

func linkedPair(n int) (a, b []float64) {
	rng := rand.New(rand.NewSource(11))
	a = make([]float64, n)
	b = make([]float64, n)
	a[0] = 100
	for i := range a {
		if i > 0 {
			a[i] = a[i-1] + rng.NormFloat64()
		}
		b[i] = 2*a[i] + 5 + rng.NormFloat64()
	}
	return a, b
}

type env struct {
	sched  *Scheduler
	rec    *recorder.CSVRecorder
	sink   *captureNotifier
	csv    string
	prices string
}

func newEnv(t *testing.T, fetcher collector.Fetcher, symbols []string) env {
	t.Helper()
	dir := t.TempDir()
	e := env{
		csv:    filepath.Join(dir, "cointegrated_pairs.csv"),
		prices: filepath.Join(dir, "price_list.json"),
		sink:   &captureNotifier{},
	}
	e.rec = recorder.NewCSVRecorder(e.csv)
	col := collector.NewCollector(fetcher, symbols, e.prices, 1000, nil)
	runner := screener.NewRunner(e.rec, nil, 2)
	e.sched = NewScheduler(context.Background(), col, runner, catalog.FileSource{Path: e.prices}, e.rec, e.sink, 5)
	return e
}

func TestRunNow_CollectsScreensAndNotifies(t *testing.T) {
	a, b := linkedPair(200)
	e := newEnv(t, &collector.MockFetcher{Data: map[string][]model.Candle{
		"AAAUSDT": candles("AAAUSDT", a),
		"BBBUSDT": candles("BBBUSDT", b),
	}}, []string{"AAAUSDT", "BBBUSDT"})

	st, err := e.sched.RunNow(context.Background())
	require.NoError(t, err)
	require.True(t, st.OK, st.Reason)
	assert.Equal(t, 1, st.Report.PairsTested)

	reports := e.sink.all()
	require.Len(t, reports, 1)
	require.NotNil(t, reports[0].Attachment)
	onDisk, err := os.ReadFile(e.csv)
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), string(reports[0].Attachment.Data))

	last := e.sched.LastStatus()
	require.NotNil(t, last)
	assert.True(t, last.OK)
	assert.False(t, e.sched.Running())
}

func TestRunNow_CollectFailureAbortsPipeline(t *testing.T) {
	e := newEnv(t, &collector.MockFetcher{Err: map[string]error{"AAAUSDT": errors.New("down")}}, []string{"AAAUSDT"})

	st, err := e.sched.RunNow(context.Background())
	require.NoError(t, err)
	assert.False(t, st.OK)
	assert.True(t, strings.HasPrefix(st.Reason, "collect:"), st.Reason)

	_, statErr := os.Stat(e.csv)
	assert.True(t, os.IsNotExist(statErr), "no table is written when collection fails")

	reports := e.sink.all()
	require.Len(t, reports, 1)
	assert.Nil(t, reports[0].Attachment)
	assert.Contains(t, reports[0].Subject, "failed")
}

// gatedFetcher blocks every fetch until release is closed.
type gatedFetcher struct {
	entered chan struct{}
	once    sync.Once
	release chan struct{}
}

func (g *gatedFetcher) Name() string { return "gated" }

func (g *gatedFetcher) FetchCandles(ctx context.Context, _ string) ([]model.Candle, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return nil, errors.New("no data")
}

func TestRunNow_RejectsOverlap(t *testing.T) {
	g := &gatedFetcher{entered: make(chan struct{}), release: make(chan struct{})}
	e := newEnv(t, g, []string{"AAAUSDT"})

	require.NoError(t, e.sched.TriggerAsync(context.Background()))
	<-g.entered
	assert.True(t, e.sched.Running())

	_, err := e.sched.RunNow(context.Background())
	assert.ErrorIs(t, err, screener.ErrRunInProgress)
	assert.ErrorIs(t, e.sched.TriggerAsync(context.Background()), screener.ErrRunInProgress)
	assert.Equal(t, "A run is already in progress.", e.sched.HandleCommand(context.Background(), "/run"))

	close(g.release)
	require.Eventually(t, func() bool { return !e.sched.Running() }, 5*time.Second, 10*time.Millisecond)
	require.NotNil(t, e.sched.LastStatus())
	assert.False(t, e.sched.LastStatus().OK)
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, &collector.MockFetcher{}, nil)

	assert.Contains(t, e.sched.HandleCommand(ctx, "/top"), "No result table yet")
	assert.Contains(t, e.sched.HandleCommand(ctx, "/status"), "No run has completed yet")
	assert.Equal(t, notifier.HelpText(), e.sched.HandleCommand(ctx, "/help"))
	assert.Equal(t, notifier.HelpText(), e.sched.HandleCommand(ctx, "   "))

	table := model.NewResultTable([]model.CointegrationResult{
		{Sym1: "AAAUSDT", Sym2: "BBBUSDT", Cointegrated: true, PValue: 0.01, ZeroCrossings: 40},
		{Sym1: "CCCUSDT", Sym2: "DDDUSDT", Cointegrated: true, PValue: 0.02, ZeroCrossings: 90, Seq: 1},
	}, time.Now())
	require.NoError(t, e.rec.SaveTable(ctx, table))

	top := e.sched.HandleCommand(ctx, "/top@PairSentinelBot 1")
	assert.Contains(t, top, "Top 1")
	assert.Contains(t, top, "CCCUSDT/DDDUSDT")
	assert.NotContains(t, top, "AAAUSDT/BBBUSDT")
	assert.Contains(t, e.sched.HandleCommand(ctx, "/top"), "Top 2")

	assert.Equal(t, "Pipeline started. The report follows when it finishes.", e.sched.HandleCommand(ctx, "/run"))
	require.Eventually(t, func() bool { return !e.sched.Running() }, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, e.sched.HandleCommand(ctx, "/status"), "Last run:")
}

func TestRegister(t *testing.T) {
	e := newEnv(t, &collector.MockFetcher{}, nil)
	assert.Error(t, e.sched.Register("every six hours"))
	assert.True(t, e.sched.NextRun().IsZero())

	require.NoError(t, e.sched.Register("0 0 */6 * * *"))
	e.sched.Start()
	defer e.sched.Stop()
	assert.Eventually(t, func() bool { return !e.sched.NextRun().IsZero() }, time.Second, 10*time.Millisecond)
}
