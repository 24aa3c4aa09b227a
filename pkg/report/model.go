package report

import (
	"fmt"
	"html/template"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jupierce/coverage-report/pkg/cobertura"
)

// Level is the color band a percentage falls into
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Thresholds are the lower bounds (inclusive) of the high and medium bands
type Thresholds struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// DefaultThresholds matches the classic green/yellow/red split
var DefaultThresholds = Thresholds{High: 80, Medium: 60}

// Classify maps a percentage onto a level
func (t Thresholds) Classify(pct float64) Level {
	switch {
	case pct >= t.High:
		return LevelHigh
	case pct >= t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Validate checks the bands are ordered and within 0..100
func (t Thresholds) Validate() error {
	if t.High < 0 || t.High > 100 || t.Medium < 0 || t.Medium > 100 {
		return fmt.Errorf("thresholds must be between 0 and 100 (high=%g, medium=%g)", t.High, t.Medium)
	}
	if t.Medium > t.High {
		return fmt.Errorf("medium threshold %g exceeds high threshold %g", t.Medium, t.High)
	}
	return nil
}

// SortOrder controls the order of the per-class table
type SortOrder string

const (
	SortDocument SortOrder = "document"
	SortName     SortOrder = "name"
	SortCoverage SortOrder = "coverage"
)

// ParseSortOrder validates a sort order name; "" means document order
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "", SortDocument:
		return SortDocument, nil
	case SortName, SortCoverage:
		return SortOrder(s), nil
	default:
		return SortDocument, fmt.Errorf("invalid sort order: %s (valid: document, name, coverage)", s)
	}
}

// ClassCoverage is one row of the per-class table
type ClassCoverage struct {
	Package  string
	FullName string
	Name     string
	Filename string
	Covered  int
	Total    int
	Coverage float64
	Level    Level
}

// Baseline is the previous run a report is compared against
type Baseline struct {
	GeneratedAt    time.Time
	LineCoverage   float64
	BranchCoverage float64
}

// Summary is everything the HTML page renders
type Summary struct {
	Title           string
	SourceFile      string
	GeneratedAt     time.Time
	SourceTimestamp time.Time
	LineCoverage    float64
	BranchCoverage  float64
	LineLevel       Level
	BranchLevel     Level
	Classes         []ClassCoverage
	CoveredLines    int
	TotalLines      int
	Notes           template.HTML
	Previous        *Baseline
}

// LineDelta returns the change in line coverage since the baseline
func (s *Summary) LineDelta() (float64, bool) {
	if s.Previous == nil {
		return 0, false
	}
	return s.LineCoverage - s.Previous.LineCoverage, true
}

// BranchDelta returns the change in branch coverage since the baseline
func (s *Summary) BranchDelta() (float64, bool) {
	if s.Previous == nil {
		return 0, false
	}
	return s.BranchCoverage - s.Previous.BranchCoverage, true
}

// Options tune how a summary is built
type Options struct {
	Title      string
	SourceFile string
	Notes      string
	Thresholds *Thresholds // nil means DefaultThresholds
	Sort       SortOrder
	Now        func() time.Time
}

// DefaultTitle heads the page when no title is configured
const DefaultTitle = "Test Coverage Report"

// Build computes the aggregate and per-class metrics of a report. The
// aggregate figures come straight from the root line-rate and branch-rate
// attributes; per-class figures are counted from the line elements.
//
// A line listed both at class level and under a method (coverlet writes
// both) counts once, see cobertura.Class.MergedLines. Covered and Total
// are therefore distinct source lines, not line elements.
func Build(cov *cobertura.Coverage, opts Options) *Summary {
	thresholds := DefaultThresholds
	if opts.Thresholds != nil {
		thresholds = *opts.Thresholds
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}

	s := &Summary{
		Title:          title,
		SourceFile:     opts.SourceFile,
		GeneratedAt:    now(),
		LineCoverage:   cov.LineRate * 100,
		BranchCoverage: cov.BranchRate * 100,
		Notes:          SanitizeNotes(opts.Notes),
	}
	if ts, ok := cov.GeneratedAt(); ok {
		s.SourceTimestamp = ts
	}
	s.LineLevel = thresholds.Classify(s.LineCoverage)
	s.BranchLevel = thresholds.Classify(s.BranchCoverage)

	for _, pkg := range cov.Packages {
		for _, class := range pkg.Classes {
			lines := class.MergedLines()
			if len(lines) == 0 {
				continue
			}

			covered := 0
			for _, l := range lines {
				if l.Covered() {
					covered++
				}
			}
			total := len(lines)
			pct := float64(covered) / float64(total) * 100

			fullName := class.Name
			if fullName == "" {
				fullName = "Unknown"
			}

			s.Classes = append(s.Classes, ClassCoverage{
				Package:  pkg.Name,
				FullName: fullName,
				Name:     displayName(fullName, class.Filename),
				Filename: class.Filename,
				Covered:  covered,
				Total:    total,
				Coverage: pct,
				Level:    thresholds.Classify(pct),
			})
			s.CoveredLines += covered
			s.TotalLines += total
		}
	}

	sortClasses(s.Classes, opts.Sort)
	return s
}

// displayName drops the namespace: "A.B.Service" renders as "Service".
// Classes named after their source file (Go profiles, coverage.py) keep
// the file's base name instead.
func displayName(name, filename string) string {
	if filename != "" && strings.HasSuffix(filepath.ToSlash(filename), filepath.ToSlash(name)) {
		return path.Base(filepath.ToSlash(name))
	}
	return shortName(name)
}

// shortName returns the last dot separated segment of name
func shortName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}

func sortClasses(classes []ClassCoverage, order SortOrder) {
	switch order {
	case SortName:
		sort.SliceStable(classes, func(i, j int) bool {
			if classes[i].Name != classes[j].Name {
				return classes[i].Name < classes[j].Name
			}
			return classes[i].FullName < classes[j].FullName
		})
	case SortCoverage:
		sort.SliceStable(classes, func(i, j int) bool {
			if classes[i].Coverage != classes[j].Coverage {
				return classes[i].Coverage < classes[j].Coverage
			}
			return classes[i].Name < classes[j].Name
		})
	}
}
