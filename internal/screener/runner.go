// Package screener runs a full cointegration screening pass over a symbol universe.
package screener

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"PairSentinel/internal/catalog"
	"PairSentinel/internal/metrics"
	"PairSentinel/internal/model"
	"PairSentinel/internal/recorder"
	"PairSentinel/internal/strategy"
)

var (
	// ErrData means the input catalog was missing or unreadable.
	ErrData = errors.New("data error")
	// ErrPersistence means the result table could not be written.
	ErrPersistence = errors.New("persistence error")
	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = errors.New("screening run already in progress")
)

// Report summarises one screening run.
type Report struct {
	RunID            string
	StartedAt        time.Time
	Duration         time.Duration
	Symbols          int
	Eligible         int
	PairsTested      int
	InsufficientData int // symbols excluded for too few valid closes
	Failed           int
	Cointegrated     int
	Table            *model.ResultTable
}

// Status is the success indicator handed to orchestration code.
type Status struct {
	OK     bool
	Reason string
	Report *Report
}

// Runner orchestrates enumeration, testing, ranking and persistence.
// It is safe for concurrent use; overlapping runs are rejected.
type Runner struct {
	Recorder recorder.Recorder
	Metrics  *metrics.Registry
	Workers  int

	running  sync.Mutex
	evalPair func(model.CandidatePair) (*model.CointegrationResult, error) // nil uses strategy.EvaluatePair
}

// NewRunner creates a Runner. workers <= 0 uses GOMAXPROCS.
func NewRunner(rec recorder.Recorder, m *metrics.Registry, workers int) *Runner {
	return &Runner{Recorder: rec, Metrics: m, Workers: workers}
}

// Execute runs a screening pass and converts the outcome into a Status.
func (r *Runner) Execute(ctx context.Context, src catalog.Source) (st Status) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("screening run panicked")
			st = Status{OK: false, Reason: fmt.Sprintf("internal error: %v", p)}
		}
	}()

	rep, err := r.Run(ctx, src)
	if err != nil {
		return Status{OK: false, Reason: err.Error(), Report: rep}
	}
	return Status{
		OK:     true,
		Reason: fmt.Sprintf("%d cointegrated pairs out of %d tested", rep.Cointegrated, rep.PairsTested),
		Report: rep,
	}
}

// Run loads the catalog from src, tests every eligible pair, ranks the
// cointegrated ones and replaces the persisted table. Nothing is persisted when
// the catalog cannot be loaded or ctx is cancelled before the table is complete.
func (r *Runner) Run(ctx context.Context, src catalog.Source) (*Report, error) {
	if !r.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.running.Unlock()

	rep := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := log.With().Str("component", "screener").Str("run_id", rep.RunID).Logger()
	logger.Info().Msg("screening run started")

	cat, err := src.Load(ctx)
	if err != nil {
		r.Metrics.ObserveRun(false, 0, 0)
		logger.Error().Err(err).Msg("load catalog")
		return rep, fmt.Errorf("%w: %w", ErrData, err)
	}
	rep.Symbols = cat.Len()
	rep.Eligible = len(cat.Eligible(model.MinObservations))
	rep.InsufficientData = rep.Symbols - rep.Eligible

	results, err := r.evaluate(ctx, cat, rep)
	if err != nil {
		r.Metrics.ObserveRun(false, 0, 0)
		logger.Warn().Err(err).Msg("screening run aborted, nothing persisted")
		return rep, err
	}

	rep.Table = model.NewResultTable(results, time.Now())
	rep.Cointegrated = rep.Table.Len()

	if err := r.Recorder.SaveTable(ctx, rep.Table); err != nil {
		r.Metrics.ObserveRun(false, 0, 0)
		logger.Error().Err(err).Msg("persist result table")
		return rep, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	rep.Duration = time.Since(rep.StartedAt)
	r.Metrics.ObserveRun(true, rep.Duration, rep.Cointegrated)
	logger.Info().
		Int("symbols", rep.Symbols).
		Int("eligible", rep.Eligible).
		Int("pairs_tested", rep.PairsTested).
		Int("failed", rep.Failed).
		Int("cointegrated", rep.Cointegrated).
		Dur("duration", rep.Duration).
		Msg("screening run completed")
	return rep, nil
}

type outcome struct {
	pair model.CandidatePair
	res  *model.CointegrationResult
	err  error
}

// evaluate fans pairs out to the worker pool and collects cointegrated results.
// A run counts as cancelled only when enumeration stopped before the last pair.
func (r *Runner) evaluate(ctx context.Context, cat *catalog.Catalog, rep *Report) ([]model.CointegrationResult, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	evalPair := r.evalPair
	if evalPair == nil {
		evalPair = strategy.EvaluatePair
	}

	pairs := make(chan model.CandidatePair, workers)
	out := make(chan outcome, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for p := range pairs {
				res, err := evalPair(p)
				out <- outcome{pair: p, res: res, err: err}
			}
		}()
	}

	// written before pairs is closed, read after out is drained
	exhausted := false
	go func() {
		defer close(pairs)
		for p := range strategy.Pairs(cat, model.MinObservations) {
			if ctx.Err() != nil {
				return
			}
			select {
			case pairs <- p:
			case <-ctx.Done():
				return
			}
		}
		exhausted = true
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	var results []model.CointegrationResult
	for o := range out {
		rep.PairsTested++
		r.Metrics.PairEvaluated()
		switch {
		case o.err != nil:
			rep.Failed++
			r.Metrics.PairSkipped("computation")
			log.Warn().Err(o.err).Str("pair", o.pair.Key.String()).Msg("pair skipped")
		case o.res.Cointegrated:
			results = append(results, *o.res)
		}
	}

	if !exhausted {
		return nil, fmt.Errorf("screening cancelled: %w", context.Cause(ctx))
	}
	return results, nil
}
