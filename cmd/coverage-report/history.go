package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-report/pkg/history"
)

var (
	historyLimit int

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded report runs",
	}

	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List previous runs recorded with --history-db",
		Example: `  # Show the last 10 runs
  coverage-report history list --history-db coverage-history.db --limit 10`,
		RunE: runHistoryList,
	}
)

func init() {
	historyListCmd.Flags().StringVar(&renderHistoryDB, "history-db", "", "SQLite database written by render --history-db")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show (0 for all)")

	historyCmd.AddCommand(historyListCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return fmt.Errorf("--history-db is required")
	}
	if _, err := os.Stat(cfg.HistoryDB); err != nil {
		return fmt.Errorf("history database not found at %s: %w", cfg.HistoryDB, err)
	}

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	fmt.Fprintf(w, "%-5s  %-19s  %8s  %8s  %15s  %7s  %s\n", "RUN", "GENERATED", "LINES", "BRANCHES", "COVERED/TOTAL", "CLASSES", "SOURCE")
	for _, r := range runs {
		fmt.Fprintf(w, "%-5d  %-19s  %7.1f%%  %7.1f%%  %15s  %7d  %s\n",
			r.ID,
			r.GeneratedAt.Local().Format("2006-01-02 15:04:05"),
			r.LineCoverage,
			r.BranchCoverage,
			fmt.Sprintf("%d/%d", r.CoveredLines, r.TotalLines),
			r.Classes,
			r.SourceFile)
	}
}
