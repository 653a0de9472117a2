package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"PairSentinel/internal/dashboard"
	"PairSentinel/internal/scheduler"
)

// serveCmd runs the scheduler, the dashboard and the Telegram bot until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled pipeline with dashboard and bot",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	log.Info().Msg("PairSentinel starting")

	ctx, cancel := signalContext()
	defer cancel()

	n, tn := newNotifier(a.cfg, a.metrics)
	sched := scheduler.NewScheduler(ctx, a.collector, a.runner, a.source, a.recorder, n, a.cfg.Dashboard.TopN)
	if err := sched.Register(a.cfg.Schedule.PipelineCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()
	log.Info().Time("next_run", sched.NextRun()).Msg("pipeline scheduled")

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	srv := dashboard.NewServer(a.cfg.Dashboard.Addr, a.recorder, sched, a.metrics, a.cfg.DataSource.PricesPath, a.cfg.Dashboard.TopN)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if a.cfg.Schedule.RunOnStart {
		log.Info().Msg("run_on_start enabled, executing pipeline now")
		if err := sched.TriggerAsync(ctx); err != nil {
			log.Warn().Err(err).Msg("run on start skipped")
		}
	}

	log.Info().Msg("PairSentinel is running. Press Ctrl+C to stop.")
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("dashboard stopped")
			cancel()
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("dashboard shutdown")
	}
	log.Info().Msg("PairSentinel stopped")
	return nil
}
