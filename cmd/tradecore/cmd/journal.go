package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradecore/id"
	"github.com/rustyeddy/tradecore/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query journaled runs",
	Long: `Query runs stored in a SQLite journal.

Subcommands:
  runs    - List all runs
  summary - Summarize a run (the latest by default)
  fills   - List the fills of a run

Examples:
  tradecore journal runs --db runs.db
  tradecore journal summary --db runs.db 01HV...`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List all runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary [run-id]",
	Short: "Summarize a run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalSummary,
}

var journalFillsCmd = &cobra.Command{
	Use:   "fills [run-id]",
	Short: "List the fills of a run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalFills,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalSummaryCmd)
	journalCmd.AddCommand(journalFillsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./tradecore.db", "path to SQLite journal DB")
}

func runJournalRuns(cmd *cobra.Command, _ []string) error {
	db, err := journal.OpenSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	runs, err := journal.ListRuns(cmd.Context(), db)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, r := range runs {
		finished := "open"
		if !r.Finished.IsZero() {
			finished = r.Finished.Sub(r.Started).Round(time.Millisecond).String()
		}
		fmt.Fprintf(out, "%s  %-20s %s  %s\n", r.ID, r.Name, r.Started.Format(time.RFC3339), finished)
	}
	return nil
}

// pickRun returns args[0] or the latest run id.
func pickRun(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		if !id.Valid(args[0]) {
			return "", fmt.Errorf("%q is not a run id", args[0])
		}
		return args[0], nil
	}
	db, err := journal.OpenSQLite(journalDBPath)
	if err != nil {
		return "", fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	runs, err := journal.ListRuns(cmd.Context(), db)
	if err != nil {
		return "", fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs in %s", journalDBPath)
	}
	return runs[len(runs)-1].ID, nil
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	runID, err := pickRun(cmd, args)
	if err != nil {
		return err
	}
	db, err := journal.OpenSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	run, err := journal.GetRun(cmd.Context(), db, runID)
	if err != nil {
		return err
	}
	s, err := journal.RunSummary(cmd.Context(), db, runID)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Name)
	if !s.Start.IsZero() {
		fmt.Fprintf(out, "  %s .. %s\n", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "  %s\n", s)
	return nil
}

func runJournalFills(cmd *cobra.Command, args []string) error {
	runID, err := pickRun(cmd, args)
	if err != nil {
		return err
	}
	db, err := journal.OpenSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	fills, err := journal.ListFills(cmd.Context(), db, runID)
	if err != nil {
		return fmt.Errorf("list fills: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, f := range fills {
		fmt.Fprintf(out, "%s  #%-5d %-24s %12.4f @ %-10.4f pnl %10.2f %s  %s\n",
			f.Time.Format(time.RFC3339), f.OrderID, f.Asset, f.Size, f.Price, f.PnL, f.Currency, f.Tag)
	}
	return nil
}
