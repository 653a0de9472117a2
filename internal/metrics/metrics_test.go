package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := New()

	r.ObserveRun(true, 2*time.Second, 7)
	r.ObserveRun(false, time.Second, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Runs.WithLabelValues("failure")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.Cointegrated), "a failed run leaves the gauge alone")
	assert.Positive(t, testutil.ToFloat64(r.LastSuccess))

	r.PairEvaluated()
	r.PairEvaluated()
	r.PairSkipped("computation")
	assert.Equal(t, 2.0, testutil.ToFloat64(r.PairsEvaluated))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PairsSkipped.WithLabelValues("computation")))

	r.Fetched("tradingview", 5000, nil)
	r.Fetched("tradingview", 0, errors.New("timeout"))
	assert.Equal(t, 5000.0, testutil.ToFloat64(r.CandlesFetched.WithLabelValues("tradingview")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FetchErrors.WithLabelValues("tradingview")))

	r.Notified("email", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Notifications.WithLabelValues("email", "ok")))

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveRun(true, time.Second, 1)
		r.PairEvaluated()
		r.PairSkipped("x")
		r.Fetched("p", 1, nil)
		r.Notified("c", nil)
	})
}
