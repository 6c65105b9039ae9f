package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradecore/config"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a random-walk demo",
	Long: `Run a self-contained backtest: a seeded random walk feed traded by a
random strategy. No files are needed.

Example:
  tradecore demo --bars 500 --seed 7 --exit layered`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

var (
	demoBars   int
	demoSeed   uint64
	demoAssets []string
	demoExit   string
	demoDB     string
)

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().IntVar(&demoBars, "bars", 250, "number of bars per asset")
	demoCmd.Flags().Uint64Var(&demoSeed, "seed", 1, "random seed for the feed and the strategy")
	demoCmd.Flags().StringSliceVar(&demoAssets, "assets", []string{"AAPL", "MSFT"}, "assets to simulate")
	demoCmd.Flags().StringVar(&demoExit, "exit", "full", "exit strategy: full, layered or recycle")
	demoCmd.Flags().StringVar(&demoDB, "db", "", "also journal the run to this SQLite database")
}

func runDemo(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	cfg.Run.Name = "demo"
	cfg.Feed.Bars = demoBars
	cfg.Feed.Seed = demoSeed
	cfg.Feed.Assets = demoAssets
	cfg.Strategy.Seed = demoSeed
	cfg.Trader.ExitStrategy = demoExit
	cfg.Trader.OrderPercentage = 0.1
	cfg.Journal.DBPath = demoDB
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, cfg, "", cmd.OutOrStdout())
}
