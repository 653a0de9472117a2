package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the base command for the PairSentinel CLI
var rootCmd = &cobra.Command{
	Use:   "pairsentinel",
	Short: "Cointegrated pair screener for crypto perpetuals",
	Long: `PairSentinel collects hourly closes for a symbol universe, runs an
Engle-Granger cointegration test on every pair and ranks the cointegrated
pairs by how often their spread crosses zero.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to the YAML config file (CONFIG_PATH also works)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
