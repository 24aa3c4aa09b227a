package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jupierce/coverage-report/pkg/report"
)

const schemaVersion = 1

// Run is one recorded report generation
type Run struct {
	ID             int64
	GeneratedAt    time.Time
	SourceFile     string
	LineCoverage   float64
	BranchCoverage float64
	CoveredLines   int
	TotalLines     int
	Classes        int
}

// Store keeps the coverage figures of past runs in SQLite
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

		CREATE TABLE IF NOT EXISTS runs (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			generated_at    TEXT NOT NULL,
			source_file     TEXT NOT NULL DEFAULT '',
			line_coverage   REAL NOT NULL DEFAULT 0.0,
			branch_coverage REAL NOT NULL DEFAULT 0.0,
			covered_lines   INTEGER NOT NULL DEFAULT 0,
			total_lines     INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS class_coverage (
			run_id     INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			package    TEXT NOT NULL DEFAULT '',
			class_name TEXT NOT NULL,
			covered    INTEGER NOT NULL DEFAULT 0,
			total      INTEGER NOT NULL DEFAULT 0,
			coverage   REAL NOT NULL DEFAULT 0.0
		);

		CREATE INDEX IF NOT EXISTS idx_class_coverage_run ON class_coverage(run_id);
	`)
	if err != nil {
		return err
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err = db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion)
	}
	return err
}

// Record stores a summary and its classes in one transaction
func (s *Store) Record(ctx context.Context, sum *report.Summary) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (generated_at, source_file, line_coverage, branch_coverage, covered_lines, total_lines)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sum.GeneratedAt.UTC().Format(time.RFC3339Nano), sum.SourceFile,
		sum.LineCoverage, sum.BranchCoverage, sum.CoveredLines, sum.TotalLines)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO class_coverage (run_id, package, class_name, covered, total, coverage)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare class insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range sum.Classes {
		if _, err := stmt.ExecContext(ctx, runID, c.Package, c.FullName, c.Covered, c.Total, c.Coverage); err != nil {
			return 0, fmt.Errorf("insert class %s: %w", c.FullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

const runColumns = `
	r.id, r.generated_at, r.source_file, r.line_coverage, r.branch_coverage,
	r.covered_lines, r.total_lines,
	(SELECT COUNT(*) FROM class_coverage c WHERE c.run_id = r.id)`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var generatedAt string
	if err := row.Scan(&r.ID, &generatedAt, &r.SourceFile, &r.LineCoverage, &r.BranchCoverage,
		&r.CoveredLines, &r.TotalLines, &r.Classes); err != nil {
		return Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse generated_at %q: %w", generatedAt, err)
	}
	r.GeneratedAt = t
	return r, nil
}

// Latest returns the most recent run, or nil when the store is empty
func (s *Store) Latest(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+runColumns+` FROM runs r ORDER BY r.id DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return &r, nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT` + runColumns + ` FROM runs r ORDER BY r.id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Baseline converts a run into the comparison point of a report
func (r *Run) Baseline() *report.Baseline {
	if r == nil {
		return nil
	}
	return &report.Baseline{
		GeneratedAt:    r.GeneratedAt,
		LineCoverage:   r.LineCoverage,
		BranchCoverage: r.BranchCoverage,
	}
}
