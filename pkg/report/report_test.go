package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupierce/coverage-report/pkg/cobertura"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func sampleCoverage() *cobertura.Coverage {
	return &cobertura.Coverage{
		LineRate:   0.8125,
		BranchRate: 0.5,
		Timestamp:  "1718000000",
		Packages: []cobertura.Package{
			{
				Name: "ApiSample01.Domain",
				Classes: []cobertura.Class{
					{
						Name:  "ApiSample01.Domain.Entities.Product",
						Lines: []cobertura.Line{{Number: 1, Hits: 3}, {Number: 2, Hits: 1}},
						Methods: []cobertura.Method{
							{Lines: []cobertura.Line{{Number: 1, Hits: 3}}},
						},
					},
					{
						Name: "ApiSample01.Domain.Empty",
					},
				},
			},
			{
				Name: "ApiSample01.Application",
				Classes: []cobertura.Class{
					{
						Name: "ApiSample01.Application.Services.OrderService",
						Lines: []cobertura.Line{
							{Number: 10, Hits: 1},
							{Number: 11, Hits: 1},
							{Number: 12, Hits: 0},
							{Number: 13, Hits: 1},
							{Number: 14, Hits: 1},
						},
					},
					{
						Lines: []cobertura.Line{{Number: 1, Hits: 0}, {Number: 2, Hits: 0}},
					},
				},
			},
		},
	}
}

func TestThresholdsClassify(t *testing.T) {
	th := DefaultThresholds
	tests := []struct {
		pct  float64
		want Level
	}{
		{100, LevelHigh},
		{80, LevelHigh},
		{79.99, LevelMedium},
		{60, LevelMedium},
		{59.9, LevelLow},
		{0, LevelLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.pct), "%v", tt.pct)
	}
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds.Validate())
	assert.Error(t, Thresholds{High: 50, Medium: 70}.Validate())
	assert.Error(t, Thresholds{High: 120, Medium: 60}.Validate())
	assert.Error(t, Thresholds{High: 80, Medium: -1}.Validate())
}

func TestParseSortOrder(t *testing.T) {
	for in, want := range map[string]SortOrder{
		"":         SortDocument,
		"document": SortDocument,
		"name":     SortName,
		"coverage": SortCoverage,
	} {
		got, err := ParseSortOrder(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseSortOrder("random")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	s := Build(sampleCoverage(), Options{SourceFile: "TestResults/x/coverage.cobertura.xml", Now: func() time.Time { return fixedNow }})

	assert.Equal(t, DefaultTitle, s.Title)
	assert.Equal(t, fixedNow, s.GeneratedAt)
	assert.True(t, time.Unix(1718000000, 0).Equal(s.SourceTimestamp))
	assert.InDelta(t, 81.25, s.LineCoverage, 1e-9)
	assert.InDelta(t, 50.0, s.BranchCoverage, 1e-9)
	assert.Equal(t, LevelHigh, s.LineLevel)
	assert.Equal(t, LevelLow, s.BranchLevel)

	want := []ClassCoverage{
		{Package: "ApiSample01.Domain", FullName: "ApiSample01.Domain.Entities.Product", Name: "Product", Covered: 2, Total: 2, Coverage: 100, Level: LevelHigh},
		{Package: "ApiSample01.Application", FullName: "ApiSample01.Application.Services.OrderService", Name: "OrderService", Covered: 4, Total: 5, Coverage: 80, Level: LevelHigh},
		{Package: "ApiSample01.Application", FullName: "Unknown", Name: "Unknown", Covered: 0, Total: 2, Coverage: 0, Level: LevelLow},
	}
	if diff := cmp.Diff(want, s.Classes, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Build() classes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 6, s.CoveredLines)
	assert.Equal(t, 9, s.TotalLines)
}

func TestBuildCustomThresholds(t *testing.T) {
	s := Build(sampleCoverage(), Options{Thresholds: &Thresholds{High: 90, Medium: 75}})
	assert.Equal(t, LevelMedium, s.LineLevel)
	assert.Equal(t, LevelMedium, s.Classes[1].Level)
}

func TestBuildZeroThresholds(t *testing.T) {
	cov := &cobertura.Coverage{
		LineRate:   0.1,
		BranchRate: 0,
		Packages: []cobertura.Package{{
			Name: "P",
			Classes: []cobertura.Class{{
				Name:  "P.A",
				Lines: []cobertura.Line{{Number: 1, Hits: 0}},
			}},
		}},
	}
	zero := Thresholds{}
	require.NoError(t, zero.Validate())

	s := Build(cov, Options{Thresholds: &zero})
	assert.Equal(t, LevelHigh, s.LineLevel, "explicit 0/0 bands put everything in high")
	assert.Equal(t, LevelHigh, s.BranchLevel)
	assert.Equal(t, LevelHigh, s.Classes[0].Level)

	s = Build(cov, Options{})
	assert.Equal(t, LevelLow, s.LineLevel, "nil thresholds fall back to the defaults")
}

func TestBuildSortOrders(t *testing.T) {
	names := func(s *Summary) []string {
		var out []string
		for _, c := range s.Classes {
			out = append(out, c.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Product", "OrderService", "Unknown"}, names(Build(sampleCoverage(), Options{})))
	assert.Equal(t, []string{"OrderService", "Product", "Unknown"}, names(Build(sampleCoverage(), Options{Sort: SortName})))
	assert.Equal(t, []string{"Unknown", "OrderService", "Product"}, names(Build(sampleCoverage(), Options{Sort: SortCoverage})))
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "Service", shortName("A.B.Service"))
	assert.Equal(t, "Plain", shortName("Plain"))
	assert.Equal(t, "Trailing.", shortName("Trailing."))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Service", displayName("A.B.Service", "Services/Service.cs"))
	assert.Equal(t, "a.go", displayName("example.com/m/pkg/a.go", "example.com/m/pkg/a.go"))
	assert.Equal(t, "utils.py", displayName("utils.py", "src/pkg/utils.py"))
	assert.Equal(t, "Unknown", displayName("Unknown", ""))
}

func TestDeltas(t *testing.T) {
	s := Build(sampleCoverage(), Options{})
	_, ok := s.LineDelta()
	assert.False(t, ok)

	s.Previous = &Baseline{LineCoverage: 80, BranchCoverage: 55}
	d, ok := s.LineDelta()
	assert.True(t, ok)
	assert.InDelta(t, 1.25, d, 1e-9)
	d, _ = s.BranchDelta()
	assert.InDelta(t, -5.0, d, 1e-9)
}

func TestRender(t *testing.T) {
	s := Build(sampleCoverage(), Options{
		Title:      "Nightly <Coverage>",
		SourceFile: "TestResults/run/coverage.cobertura.xml",
		Notes:      `<b>release</b> candidate<script>alert(1)</script>`,
		Now:        func() time.Time { return fixedNow },
	})
	s.Previous = &Baseline{GeneratedAt: fixedNow.Add(-24 * time.Hour), LineCoverage: 85, BranchCoverage: 50}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s))
	page := buf.String()

	assert.Contains(t, page, "Nightly &lt;Coverage&gt;")
	assert.Contains(t, page, "Generated at: 2026-10-18 09:30:00")
	assert.Contains(t, page, `<div class="metric high">`)
	assert.Contains(t, page, "<h2>81.2%</h2>")
	assert.Contains(t, page, `<div class="metric low">`)
	assert.Contains(t, page, "<h2>50.0%</h2>")
	assert.Contains(t, page, `<tr class="high">`)
	assert.Contains(t, page, `<td title="ApiSample01.Domain.Entities.Product">Product</td>`)
	assert.Contains(t, page, `<td class="num">100.0%</td>`)
	assert.Contains(t, page, "-3.8 pp since 2026-10-17 09:30:00")
	assert.Contains(t, page, `<span class="delta flat">+0.0 pp`)
	assert.Contains(t, page, "<b>release</b> candidate")
	assert.NotContains(t, page, "<script>")
	assert.Contains(t, page, "Total (3 classes)")
}

func TestRenderNoClasses(t *testing.T) {
	s := Build(&cobertura.Coverage{}, Options{})

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s))
	assert.Contains(t, buf.String(), "No classes with executable lines")
	assert.NotContains(t, buf.String(), "<tfoot>")
	assert.NotContains(t, buf.String(), `class="notes"`)
}

func TestRenderThousandsSeparator(t *testing.T) {
	s := &Summary{
		Title:       "big",
		GeneratedAt: fixedNow,
		Classes:     []ClassCoverage{{Name: "Huge", Covered: 12345, Total: 1234567, Level: LevelLow}},
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s))
	assert.Contains(t, buf.String(), "1,234,567")
	assert.Contains(t, buf.String(), "12,345")
}

func TestSanitizeNotes(t *testing.T) {
	assert.Equal(t, "", string(SanitizeNotes("   ")))
	got := string(SanitizeNotes(`<a href="https://ci.example.com/run/1" onclick="x()">run</a>`))
	assert.Contains(t, got, `href="https://ci.example.com/run/1"`)
	assert.NotContains(t, got, "onclick")
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "CoverageReport")
	s := Build(sampleCoverage(), Options{Now: func() time.Time { return fixedNow }})

	path, err := WriteFile(dir, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, IndexFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm(), "page must be world readable")

	// second write replaces the page in place
	s.Title = "Second"
	_, err = WriteFile(dir, s)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>📊 Second</h1>")

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}
