package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"PairSentinel/internal/catalog"
	"PairSentinel/internal/model"
	"PairSentinel/internal/scheduler"
)

var (
	screenDryRun bool
	screenTop    int
	screenPrices string
)

// screenCmd runs one screening pass over the saved price document.
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen the saved price document for cointegrated pairs",
	Long: `Load the price document, test every eligible pair and replace the
result table. Nothing is fetched from the network.

Examples:
  pairsentinel screen
  pairsentinel screen --prices data/price_list.json --top 10
  pairsentinel screen --dry-run`,
	RunE: runScreen,
}

// fetchCmd collects candles and writes the price document.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch candle history for the configured symbols",
	RunE:  runFetch,
}

// pipelineCmd runs fetch, screen and notify once and exits.
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run fetch, screen and notify once",
	RunE:  runPipeline,
}

func init() {
	rootCmd.AddCommand(screenCmd, fetchCmd, pipelineCmd)

	screenCmd.Flags().BoolVar(&screenDryRun, "dry-run", false, "Do not persist the result table")
	screenCmd.Flags().IntVar(&screenTop, "top", 20, "Rows to print")
	screenCmd.Flags().StringVar(&screenPrices, "prices", "", "Price document to screen (defaults to data_source.prices_path)")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runScreen(cmd *cobra.Command, args []string) error {
	a, err := newApp(screenDryRun)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	src := a.source
	if screenPrices != "" {
		src = catalog.FileSource{Path: screenPrices}
	}
	st := a.runner.Execute(ctx, src)
	if !st.OK {
		return errors.New(st.Reason)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n\n", st.Reason, st.Report.Duration.Round(time.Millisecond))
	return printTable(cmd, st.Report.Table, screenTop)
}

func printTable(cmd *cobra.Command, table *model.ResultTable, n int) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "#\tsym_1\tsym_2\tp_value\tt_value\tc_value\thedge_ratio\tzero_crossings\t")
	for i, r := range table.Top(n) {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\t%.4f\t%.4f\t%.4f\t%d\t\n",
			i+1, r.Sym1, r.Sym2, r.PValue, r.TValue, r.CValue, r.HedgeRatio, r.ZeroCrossings)
	}
	return w.Flush()
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	n, err := a.collector.Collect(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "collected %d of %d symbols into %s\n", n, len(a.cfg.DataSource.Symbols), a.cfg.DataSource.PricesPath)
	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	n, _ := newNotifier(a.cfg, a.metrics)
	sched := scheduler.NewScheduler(ctx, a.collector, a.runner, a.source, a.recorder, n, a.cfg.Dashboard.TopN)
	st, err := sched.RunNow(ctx)
	if err != nil {
		return err
	}
	if !st.OK {
		return errors.New(st.Reason)
	}
	fmt.Fprintln(cmd.OutOrStdout(), st.Reason)
	return nil
}
