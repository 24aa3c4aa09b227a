package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jupierce/coverage-report/pkg/cobertura"
	"github.com/jupierce/coverage-report/pkg/config"
	"github.com/jupierce/coverage-report/pkg/history"
	"github.com/jupierce/coverage-report/pkg/log"
	"github.com/jupierce/coverage-report/pkg/report"
)

var (
	renderOutputDir       string
	renderTitle           string
	renderNotes           string
	renderSort            string
	renderThresholdHigh   float64
	renderThresholdMedium float64
	renderFailUnder       float64
	renderFailMissing     bool
	renderHistoryDB       string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Generate the HTML coverage summary",
	Long: `Locate a coverage file, compute aggregate and per-class line coverage and
write <output-dir>/index.html.

When no file matches the search pattern a message is printed and the command
exits successfully without writing anything, unless --fail-missing is set.`,
	Example: `  # Default search and output locations
  coverage-report render

  # Search recursively and sort the table by coverage, worst first
  coverage-report render --pattern '**/coverage.cobertura.xml' --sort coverage

  # Track runs in SQLite and show the change since the previous run
  coverage-report render --history-db coverage-history.db`,
	RunE: runRender,
}

func init() {
	addRenderFlags(renderCmd.Flags())
	rootCmd.AddCommand(renderCmd)
}

// addRenderFlags registers the render flags; the root command and the
// render subcommand share the same variables.
func addRenderFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&renderOutputDir, "output-dir", "o", report.DefaultOutputDir, "Directory index.html is written to")
	fs.StringVar(&renderTitle, "title", report.DefaultTitle, "Page title")
	fs.StringVar(&renderNotes, "notes", "", "HTML notes shown under the header (sanitized)")
	fs.StringVar(&renderSort, "sort", string(report.SortDocument), "Class table order (document, name, coverage)")
	fs.Float64Var(&renderThresholdHigh, "threshold-high", report.DefaultThresholds.High, "Lowest percentage rendered as high coverage")
	fs.Float64Var(&renderThresholdMedium, "threshold-medium", report.DefaultThresholds.Medium, "Lowest percentage rendered as medium coverage")
	fs.Float64Var(&renderFailUnder, "fail-under", 0, "Exit with status 2 when line coverage is below this percentage")
	fs.BoolVar(&renderFailMissing, "fail-missing", false, "Exit with an error when no coverage file is found")
	fs.StringVar(&renderHistoryDB, "history-db", "", "SQLite database recording each run (enables change indicators)")
}

func applyRenderFlags(flags *pflag.FlagSet, cfg *config.Config) {
	overrideString(flags, "output-dir", &cfg.OutputDir, renderOutputDir)
	overrideString(flags, "title", &cfg.Title, renderTitle)
	overrideString(flags, "notes", &cfg.Notes, renderNotes)
	overrideString(flags, "sort", &cfg.Sort, renderSort)
	overrideFloat(flags, "threshold-high", &cfg.Thresholds.High, renderThresholdHigh)
	overrideFloat(flags, "threshold-medium", &cfg.Thresholds.Medium, renderThresholdMedium)
	overrideFloat(flags, "fail-under", &cfg.FailUnder, renderFailUnder)
	overrideBool(flags, "fail-missing", &cfg.FailMissing, renderFailMissing)
	overrideString(flags, "history-db", &cfg.HistoryDB, renderHistoryDB)
}

// gateError reports line coverage under the --fail-under threshold
type gateError struct {
	Coverage float64
	Required float64
}

func (e *gateError) Error() string {
	return fmt.Sprintf("line coverage %.1f%% is below the required %.1f%%", e.Coverage, e.Required)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	summary, _, err := generate(cmd.Context(), cfg, logger)
	if errors.Is(err, cobertura.ErrNotFound) {
		logger.Error("Coverage file not found (%s)", describeSearch(cfg))
		if cfg.FailMissing {
			return err
		}
		return nil
	}
	if err != nil {
		return err
	}

	if cfg.FailUnder > 0 && summary.LineCoverage < cfg.FailUnder {
		return &gateError{Coverage: summary.LineCoverage, Required: cfg.FailUnder}
	}
	return nil
}

func describeSearch(cfg *config.Config) string {
	if cfg.Input != "" {
		return cfg.Input
	}
	return fmt.Sprintf("pattern %s under %s", cfg.Pattern, cfg.Root)
}

// resolveInput returns the explicit input file or the first search match
func resolveInput(cfg *config.Config, logger *log.Logger) (string, error) {
	if cfg.Input != "" {
		return cfg.Input, nil
	}

	matches, err := cobertura.Find(cfg.Root, cfg.Pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no match for %s", cobertura.ErrNotFound, cfg.Pattern)
	}
	if len(matches) > 1 {
		logger.Debug("%d coverage files matched, using the first:", len(matches))
		for _, m := range matches {
			logger.Debug("   • %s", m)
		}
	}
	return matches[0], nil
}

// loadCoverage reads the input in the configured format
func loadCoverage(format, path string) (*cobertura.Coverage, error) {
	if format == config.FormatGo {
		return cobertura.ParseGoProfile(path)
	}
	return cobertura.ParseFile(path)
}

// buildSummary runs the find and parse steps and computes the metrics
func buildSummary(cfg *config.Config, logger *log.Logger) (*report.Summary, error) {
	path, err := resolveInput(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Progress("Processing: %s", path)

	cov, err := loadCoverage(cfg.Format, path)
	if err != nil {
		return nil, err
	}

	sortOrder, err := report.ParseSortOrder(cfg.Sort)
	if err != nil {
		return nil, err
	}

	summary := report.Build(cov, report.Options{
		Title:      cfg.Title,
		SourceFile: path,
		Notes:      cfg.Notes,
		Thresholds: &cfg.Thresholds,
		Sort:       sortOrder,
	})
	logger.Debug("Parsed %d packages, %d classes with executable lines", len(cov.Packages), len(summary.Classes))
	return summary, nil
}

// generate is the full render pipeline: find, parse, compute, render, write.
// It returns the summary and the path of the written page.
func generate(ctx context.Context, cfg *config.Config, logger *log.Logger) (*report.Summary, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	summary, err := buildSummary(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	var store *history.Store
	if cfg.HistoryDB != "" {
		store, err = history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, "", fmt.Errorf("open history: %w", err)
		}
		defer store.Close()

		previous, err := store.Latest(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("load previous run: %w", err)
		}
		summary.Previous = previous.Baseline()
		if previous != nil {
			logger.Debug("Comparing against run #%d from %s", previous.ID, previous.GeneratedAt.Format(time.RFC3339))
		}
	}

	htmlPath, err := report.WriteFile(cfg.OutputDir, summary)
	if err != nil {
		return nil, "", fmt.Errorf("write report: %w", err)
	}

	if store != nil {
		runID, err := store.Record(ctx, summary)
		if err != nil {
			return nil, "", fmt.Errorf("record run: %w", err)
		}
		logger.Debug("Recorded run #%d in %s", runID, cfg.HistoryDB)
	}

	logger.Success("HTML report generated: %s", htmlPath)
	logger.Metric("📈", "Line coverage", "%.1f%%", summary.LineCoverage)
	logger.Metric("🌿", "Branch coverage", "%.1f%%", summary.BranchCoverage)
	if d, ok := summary.LineDelta(); ok {
		logger.Info("   Change since previous run: %+.1f pp", d)
	}

	return summary, htmlPath, nil
}
