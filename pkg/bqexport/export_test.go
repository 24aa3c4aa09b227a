package bqexport

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupierce/coverage-report/pkg/report"
)

type recordingPutter struct {
	calls  []interface{}
	failOn int
}

func (p *recordingPutter) Put(_ context.Context, src interface{}) error {
	p.calls = append(p.calls, src)
	if p.failOn > 0 && len(p.calls) == p.failOn {
		return errors.New("quota exceeded")
	}
	return nil
}

func testSummary(classes int) *report.Summary {
	s := &report.Summary{
		SourceFile:     "TestResults/a/coverage.cobertura.xml",
		GeneratedAt:    time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		LineCoverage:   72.5,
		BranchCoverage: 40,
		CoveredLines:   29,
		TotalLines:     40,
	}
	for i := 0; i < classes; i++ {
		s.Classes = append(s.Classes, report.ClassCoverage{
			Package:  "Pkg",
			FullName: fmt.Sprintf("Pkg.C%d", i),
			Name:     fmt.Sprintf("C%d", i),
			Covered:  1,
			Total:    2,
			Coverage: 50,
			Level:    report.LevelLow,
		})
	}
	return s
}

func TestBuildRows(t *testing.T) {
	ingest := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	summary, rows := BuildRows(testSummary(2), "run-1", ingest)

	assert.Equal(t, "run-1", summary.ReportID)
	assert.Equal(t, ingest, summary.IngestionTime)
	assert.Equal(t, 72.5, summary.LineCoverage)
	assert.Equal(t, 2, summary.ClassCount)
	assert.Equal(t, 40, summary.TotalLines)

	require.Len(t, rows, 2)
	assert.Equal(t, "Pkg.C1", rows[1].ClassName)
	assert.Equal(t, "low", rows[1].Level)
	assert.Equal(t, "run-1", rows[1].ReportID)
}

func TestUploadBatches(t *testing.T) {
	summary, rows := BuildRows(testSummary(1201), "run-2", time.Now())

	summaries := &recordingPutter{}
	classes := &recordingPutter{}
	require.NoError(t, Upload(context.Background(), summaries, classes, summary, rows))

	require.Len(t, summaries.calls, 1)
	require.Len(t, classes.calls, 3)
	assert.Len(t, classes.calls[0], 500)
	assert.Len(t, classes.calls[1], 500)
	assert.Len(t, classes.calls[2], 201)
}

func TestUploadStopsOnError(t *testing.T) {
	summary, rows := BuildRows(testSummary(1001), "run-3", time.Now())

	classes := &recordingPutter{failOn: 2}
	err := Upload(context.Background(), &recordingPutter{}, classes, summary, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 500")
	assert.Len(t, classes.calls, 2)
}

func TestUploadSummaryError(t *testing.T) {
	summary, rows := BuildRows(testSummary(1), "run-4", time.Now())

	classes := &recordingPutter{}
	err := Upload(context.Background(), &recordingPutter{failOn: 1}, classes, summary, rows)
	require.Error(t, err)
	assert.Empty(t, classes.calls)
}

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, isAlreadyExists(errors.New("googleapi: Error 409: Already Exists: Dataset p:d, duplicate")))
	assert.False(t, isAlreadyExists(errors.New("googleapi: Error 403: denied")))
}

func TestNewRequiresTarget(t *testing.T) {
	_, err := New(context.Background(), "", "ds", "")
	assert.Error(t, err)
}
