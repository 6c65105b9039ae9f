package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradecore/backtest"
	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/config"
	"github.com/rustyeddy/tradecore/journal"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from a config file",
	Long: `Run a backtest using settings from a configuration file.

TRADECORE_* environment variables and an optional .env file override the
file. Interrupting the run stops it cleanly and still prints the final
account.

Example:
  tradecore run -f backtest.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if registry == nil && cfg.Metrics.Addr != "" {
		if err := serveMetrics(cfg.Metrics.Addr); err != nil {
			return err
		}
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, cfg, filepath.Dir(runConfigPath), cmd.OutOrStdout())
}

// execute wires a run from cfg and prints its outcome. Relative paths in
// cfg are resolved against dir.
func execute(ctx context.Context, cfg *config.Config, dir string, out io.Writer) error {
	log := slog.Default()

	f, err := cfg.NewFeed(dir)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	s, err := cfg.NewStrategy(dir)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	tr, err := cfg.NewTrader(log)
	if err != nil {
		return err
	}
	b, err := cfg.NewBroker(log)
	if err != nil {
		return err
	}

	var reg prometheus.Registerer
	if registry != nil {
		reg = registry
	}
	j, mem, err := cfg.NewJournal(dir, reg)
	if err != nil {
		return err
	}

	opts, err := cfg.WorkerOptions()
	if err != nil {
		return errors.Join(err, j.Close())
	}
	opts = append(opts,
		backtest.WithTrader(tr),
		backtest.WithJournal(j),
		backtest.WithLogger(log),
	)

	fmt.Fprintf(out, "Running %s: %s feed, %s strategy, deposit %s\n",
		cfg.Run.Name, cfg.Feed.Type, cfg.Strategy.Type, cfg.Deposit())

	snap, runErr := backtest.Run(ctx, f, s, b, opts...)
	if err := j.Close(); err != nil {
		log.Error("close journal", "err", err)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(out, "Run interrupted")
	}

	fmt.Fprintf(out, "\n%s\n", mem.Summary())
	printSnapshot(out, snap)
	for _, sink := range j {
		if sj, ok := sink.(*journal.SQLiteJournal); ok {
			fmt.Fprintf(out, "\nRun id: %s\n", sj.RunID())
		}
	}
	return runErr
}

func printSnapshot(out io.Writer, snap broker.Snapshot) {
	eq, err := snap.Equity()
	if err != nil {
		fmt.Fprintf(out, "Equity: %v\n", err)
	} else {
		fmt.Fprintf(out, "Equity: %s\n", eq)
	}
	fmt.Fprintf(out, "Cash: %s\n", snap.Cash)
	fmt.Fprintf(out, "Buying power: %s\n", snap.BuyingPower)

	assets := snap.Assets()
	if len(assets) == 0 {
		fmt.Fprintln(out, "Positions: none")
	} else {
		fmt.Fprintln(out, "Positions:")
		for _, a := range assets {
			p, _ := snap.Position(a)
			fmt.Fprintf(out, "  %-12s %10s @ %.4f (mkt %.4f)\n", a.Symbol(), p.Size, p.AvgPrice, p.MktPrice)
		}
	}
	if n := len(snap.OpenOrders); n > 0 {
		fmt.Fprintf(out, "Open orders: %d\n", n)
	}
}
