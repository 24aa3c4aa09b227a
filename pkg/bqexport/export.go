package bqexport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/jupierce/coverage-report/pkg/report"
)

const batchSize = 500

// SummaryRow is one report's aggregate figures
type SummaryRow struct {
	IngestionTime  time.Time `bigquery:"ingestion_time"`
	ReportID       string    `bigquery:"report_id"`
	SourceFile     string    `bigquery:"source_file"`
	GeneratedAt    time.Time `bigquery:"generated_at"`
	LineCoverage   float64   `bigquery:"line_coverage"`
	BranchCoverage float64   `bigquery:"branch_coverage"`
	CoveredLines   int       `bigquery:"covered_lines"`
	TotalLines     int       `bigquery:"total_lines"`
	ClassCount     int       `bigquery:"class_count"`
}

// ClassRow is one class of a report
type ClassRow struct {
	IngestionTime time.Time `bigquery:"ingestion_time"`
	ReportID      string    `bigquery:"report_id"`
	Package       string    `bigquery:"package"`
	ClassName     string    `bigquery:"class_name"`
	CoveredLines  int       `bigquery:"covered_lines"`
	TotalLines    int       `bigquery:"total_lines"`
	Coverage      float64   `bigquery:"coverage"`
	Level         string    `bigquery:"level"`
}

var summarySchema = bigquery.Schema{
	{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "report_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "source_file", Type: bigquery.StringFieldType},
	{Name: "generated_at", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "line_coverage", Type: bigquery.FloatFieldType, Required: true},
	{Name: "branch_coverage", Type: bigquery.FloatFieldType, Required: true},
	{Name: "covered_lines", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "total_lines", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "class_count", Type: bigquery.IntegerFieldType, Required: true},
}

var classSchema = bigquery.Schema{
	{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "report_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "package", Type: bigquery.StringFieldType},
	{Name: "class_name", Type: bigquery.StringFieldType, Required: true},
	{Name: "covered_lines", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "total_lines", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "coverage", Type: bigquery.FloatFieldType, Required: true},
	{Name: "level", Type: bigquery.StringFieldType},
}

// BuildRows flattens a summary into BigQuery rows
func BuildRows(sum *report.Summary, reportID string, ingestionTime time.Time) (*SummaryRow, []*ClassRow) {
	summary := &SummaryRow{
		IngestionTime:  ingestionTime,
		ReportID:       reportID,
		SourceFile:     sum.SourceFile,
		GeneratedAt:    sum.GeneratedAt,
		LineCoverage:   sum.LineCoverage,
		BranchCoverage: sum.BranchCoverage,
		CoveredLines:   sum.CoveredLines,
		TotalLines:     sum.TotalLines,
		ClassCount:     len(sum.Classes),
	}

	classes := make([]*ClassRow, 0, len(sum.Classes))
	for _, c := range sum.Classes {
		classes = append(classes, &ClassRow{
			IngestionTime: ingestionTime,
			ReportID:      reportID,
			Package:       c.Package,
			ClassName:     c.FullName,
			CoveredLines:  c.Covered,
			TotalLines:    c.Total,
			Coverage:      c.Coverage,
			Level:         string(c.Level),
		})
	}
	return summary, classes
}

// Putter is the part of *bigquery.Inserter the upload needs
type Putter interface {
	Put(ctx context.Context, src interface{}) error
}

// Upload writes the summary row and the class rows in batches
func Upload(ctx context.Context, summaries, classes Putter, summary *SummaryRow, rows []*ClassRow) error {
	if err := summaries.Put(ctx, summary); err != nil {
		return fmt.Errorf("insert summary row: %w", err)
	}

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := classes.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("insert class rows at offset %d: %w", start, err)
		}
	}
	return nil
}

// Exporter writes reports into a BigQuery dataset
type Exporter struct {
	client       *bigquery.Client
	project      string
	dataset      string
	classTable   string
	summaryTable string
}

// New creates a BigQuery client for project. Class rows go to table,
// summaries to <table>_summary.
func New(ctx context.Context, project, dataset, table string) (*Exporter, error) {
	if project == "" || dataset == "" {
		return nil, fmt.Errorf("bigquery project and dataset are required")
	}
	if table == "" {
		table = "class_coverage"
	}

	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("create BigQuery client: %w", err)
	}

	return &Exporter{
		client:       client,
		project:      project,
		dataset:      dataset,
		classTable:   table,
		summaryTable: table + "_summary",
	}, nil
}

// Close releases the client
func (e *Exporter) Close() error {
	return e.client.Close()
}

// Target names the dataset rows are written to
func (e *Exporter) Target() string {
	return fmt.Sprintf("%s.%s.{%s,%s}", e.project, e.dataset, e.classTable, e.summaryTable)
}

func isAlreadyExists(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Already Exists") ||
		strings.Contains(msg, "alreadyExists") ||
		strings.Contains(msg, "409")
}

// EnsureTables creates the dataset and both tables when missing
func (e *Exporter) EnsureTables(ctx context.Context) error {
	ds := e.client.Dataset(e.dataset)
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create dataset: %w", err)
	}

	tables := []struct {
		name   string
		schema bigquery.Schema
	}{
		{e.summaryTable, summarySchema},
		{e.classTable, classSchema},
	}
	for _, t := range tables {
		err := ds.Table(t.name).Create(ctx, &bigquery.TableMetadata{
			Schema: t.schema,
			TimePartitioning: &bigquery.TimePartitioning{
				Field: "ingestion_time",
			},
			Clustering: &bigquery.Clustering{
				Fields: []string{"report_id"},
			},
		})
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("create %s table: %w", t.name, err)
		}
	}
	return nil
}

// Ingest uploads one summary and returns the number of class rows written
func (e *Exporter) Ingest(ctx context.Context, sum *report.Summary, reportID string, ingestionTime time.Time) (int, error) {
	summary, rows := BuildRows(sum, reportID, ingestionTime)

	ds := e.client.Dataset(e.dataset)
	if err := Upload(ctx, ds.Table(e.summaryTable).Inserter(), ds.Table(e.classTable).Inserter(), summary, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
