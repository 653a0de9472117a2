package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"PairSentinel/internal/catalog"
	"PairSentinel/internal/collector"
	"PairSentinel/internal/notifier"
	"PairSentinel/internal/recorder"
	"PairSentinel/internal/screener"
)

// Scheduler runs the collect, screen and notify pipeline on a cron schedule and on demand.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector // nil screens the existing price document
	Runner    *screener.Runner
	Source    catalog.Source
	Recorder  recorder.Recorder
	Notifier  notifier.Notifier // nil disables delivery
	TopN      int

	ctx     context.Context
	running atomic.Bool
	mu      sync.RWMutex
	last    *screener.Status
}

// NewScheduler creates a new Scheduler. Jobs run with ctx.
func NewScheduler(ctx context.Context, col *collector.Collector, runner *screener.Runner, src catalog.Source,
	rec recorder.Recorder, n notifier.Notifier, topN int) *Scheduler {
	logger := cronLogger{log.With().Str("component", "cron").Logger()}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Collector: col,
		Runner:    runner,
		Source:    src,
		Recorder:  rec,
		Notifier:  n,
		TopN:      topN,
		ctx:       ctx,
	}
}

// Register adds the pipeline job.
func (s *Scheduler) Register(pipelineCron string) error {
	if _, err := s.Cron.AddFunc(pipelineCron, s.pipelineJob); err != nil {
		return fmt.Errorf("register pipeline task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) pipelineJob() {
	if _, err := s.RunNow(s.ctx); err != nil {
		log.Warn().Err(err).Msg("scheduled pipeline skipped")
	}
}

// RunNow executes the pipeline synchronously. It returns ErrRunInProgress when
// another pipeline is active.
func (s *Scheduler) RunNow(ctx context.Context) (screener.Status, error) {
	if !s.running.CompareAndSwap(false, true) {
		return screener.Status{}, screener.ErrRunInProgress
	}
	defer s.running.Store(false)
	return s.run(ctx), nil
}

// TriggerAsync starts the pipeline in the background.
func (s *Scheduler) TriggerAsync(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return screener.ErrRunInProgress
	}
	go func() {
		defer s.running.Store(false)
		s.run(context.WithoutCancel(ctx))
	}()
	return nil
}

// Running reports whether a pipeline is active.
func (s *Scheduler) Running() bool { return s.running.Load() }

// LastStatus returns the status of the last finished pipeline, or nil.
func (s *Scheduler) LastStatus() *screener.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	st := *s.last
	return &st
}

func (s *Scheduler) run(ctx context.Context) screener.Status {
	logger := log.With().Str("component", "pipeline").Logger()
	logger.Info().Msg("running pipeline")

	var st screener.Status
	if s.Collector != nil {
		if _, err := s.Collector.Collect(ctx); err != nil {
			logger.Error().Err(err).Msg("collect failed")
			st = screener.Status{OK: false, Reason: fmt.Sprintf("collect: %v", err)}
		}
	}
	if st.Reason == "" {
		st = s.Runner.Execute(ctx, s.Source)
	}

	s.mu.Lock()
	s.last = &st
	s.mu.Unlock()

	s.notify(ctx, st)
	return st
}

func (s *Scheduler) notify(ctx context.Context, st screener.Status) {
	if s.Notifier == nil {
		return
	}
	var csv []byte
	if st.OK && st.Report != nil {
		var buf bytes.Buffer
		if err := recorder.WriteCSV(&buf, st.Report.Table); err != nil {
			log.Error().Err(err).Msg("render result table for delivery")
		} else {
			csv = buf.Bytes()
		}
	}
	if err := s.Notifier.SendReport(ctx, notifier.FormatRunReport(st, s.TopN, csv)); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

// HandleCommand processes a bot command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.HelpText()
	}
	// strip the @botname suffix used in group chats
	name, _, _ := strings.Cut(fields[0], "@")

	switch name {
	case "/top":
		n := s.TopN
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
				n = v
			}
		}
		table, err := s.Recorder.LoadTable(ctx)
		if errors.Is(err, recorder.ErrNoTable) {
			return "No result table yet. Send /run to start a screening."
		}
		if err != nil {
			log.Error().Err(err).Msg("load result table")
			return "Could not load the result table."
		}
		return notifier.FormatTopPairs(table, n)
	case "/status":
		return notifier.FormatStatus(s.LastStatus(), s.Running())
	case "/run":
		if err := s.TriggerAsync(ctx); err != nil {
			return "A run is already in progress."
		}
		return "Pipeline started. The report follows when it finishes."
	default:
		return notifier.HelpText()
	}
}

// cronLogger routes cron's internal logging through zerolog.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// NextRun reports when the pipeline fires next.
func (s *Scheduler) NextRun() time.Time {
	entries := s.Cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
