package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "v1.0.0"

type options struct {
	configPath  string
	topN        int
	concurrency int
	symbols     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("divscan failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "divscan",
		Short:   "Multi-timeframe RSI/MACD divergence scanner",
		Version: version,
		Long: `divscan grades every symbol of a roster by RSI and MACD divergence on
weekly, 90 minute, hourly and 15 minute bars, weights the grade by
market capitalisation and prints the top-ranked opportunities.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", envOr("CONFIG_PATH", "configs/config.yaml"), "Path to the YAML config file")
	pf.IntVar(&opts.topN, "top", 0, "Number of ranked results to report (overrides scan.top_n)")
	pf.IntVar(&opts.concurrency, "concurrency", 0, "Symbols analysed in parallel (overrides scan.concurrency)")
	pf.StringVar(&opts.symbols, "symbols", "", "Comma-separated symbols; replaces the configured roster")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one batch and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), opts, cmd.OutOrStdout())
		},
	})

	var runOnStart bool
	daemon := &cobra.Command{
		Use:   "daemon",
		Short: "Run batches on the configured cron schedule",
		Long:  "Runs a batch on every schedule.cron tick and answers /top and /scan Telegram commands until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opts, runOnStart, cmd.OutOrStdout())
		},
	}
	daemon.Flags().BoolVar(&runOnStart, "run-on-start", os.Getenv("RUN_ON_START") == "true", "Run a batch immediately")
	root.AddCommand(daemon)

	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
