package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-report/pkg/bqexport"
	"github.com/jupierce/coverage-report/pkg/config"
)

// BigQuery command flags
var (
	bqProject  string
	bqDataset  string
	bqTable    string
	bqReportID string
)

var bigqueryCmd = &cobra.Command{
	Use:   "bigquery",
	Short: "BigQuery operations",
	Long:  `Export coverage figures to Google BigQuery for trend analysis across runs.`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a coverage report into BigQuery",
	Long: `Parse the located coverage report and stream its figures into BigQuery.

Writes to two tables in the dataset:
  - <table>:          one row per class
  - <table>_summary:  one row per report with the aggregate rates

The dataset and tables are created if they don't exist.`,
	Example: `  # Ingest the default TestResults report
  coverage-report bigquery --project my-project --dataset coverage ingest

  # Ingest a specific file under an explicit report id
  coverage-report bigquery --project my-project --dataset coverage \
    ingest --input build/coverage.xml --report-id "$CI_PIPELINE_ID"`,
	RunE: runIngest,
}

func init() {
	bigqueryCmd.PersistentFlags().StringVar(&bqProject, "project", "", "GCP project ID")
	bigqueryCmd.PersistentFlags().StringVar(&bqDataset, "dataset", "", "BigQuery dataset name")
	bigqueryCmd.PersistentFlags().StringVar(&bqTable, "table", "class_coverage", "Class table name (summaries go to <table>_summary)")

	ingestCmd.Flags().StringVar(&bqReportID, "report-id", "", "Identifier stored with every row (default <source>@<timestamp>)")

	bigqueryCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(bigqueryCmd)
}

func applyBigQueryFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	overrideString(flags, "project", &cfg.BigQuery.Project, bqProject)
	overrideString(flags, "dataset", &cfg.BigQuery.Dataset, bqDataset)
	overrideString(flags, "table", &cfg.BigQuery.Table, bqTable)

	if cfg.BigQuery.Project == "" {
		return fmt.Errorf("--project (or bigquery.project) is required")
	}
	if cfg.BigQuery.Dataset == "" {
		return fmt.Errorf("--dataset (or bigquery.dataset) is required")
	}
	return nil
}

func defaultReportID(source string, t time.Time) string {
	return fmt.Sprintf("%s@%s", source, t.UTC().Format(time.RFC3339))
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ingestionTime := time.Now().UTC()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyBigQueryFlags(cmd, cfg); err != nil {
		return err
	}

	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	summary, err := buildSummary(cfg, logger)
	if err != nil {
		return err
	}

	reportID := bqReportID
	if reportID == "" {
		stamp := summary.GeneratedAt
		if !summary.SourceTimestamp.IsZero() {
			stamp = summary.SourceTimestamp
		}
		reportID = defaultReportID(summary.SourceFile, stamp)
	}

	exporter, err := bqexport.New(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
	if err != nil {
		return err
	}
	defer exporter.Close()

	logger.Info("BigQuery target: %s", exporter.Target())
	logger.Info("Report id: %s", reportID)

	if err := exporter.EnsureTables(ctx); err != nil {
		return fmt.Errorf("setup BigQuery: %w", err)
	}

	n, err := exporter.Ingest(ctx, summary, reportID, ingestionTime)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	logger.Success("Ingested 1 summary row and %d class rows", n)
	return nil
}
