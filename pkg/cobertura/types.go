package cobertura

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Coverage is the root element of a Cobertura report
type Coverage struct {
	XMLName         xml.Name  `xml:"coverage"`
	LineRate        float64   `xml:"line-rate,attr"`
	BranchRate      float64   `xml:"branch-rate,attr"`
	LinesCovered    int64     `xml:"lines-covered,attr"`
	LinesValid      int64     `xml:"lines-valid,attr"`
	BranchesCovered int64     `xml:"branches-covered,attr"`
	BranchesValid   int64     `xml:"branches-valid,attr"`
	Complexity      float64   `xml:"complexity,attr"`
	Version         string    `xml:"version,attr"`
	Timestamp       string    `xml:"timestamp,attr"`
	Sources         []string  `xml:"sources>source"`
	Packages        []Package `xml:"packages>package"`
}

// Package groups classes, usually by namespace or assembly
type Package struct {
	Name       string  `xml:"name,attr"`
	LineRate   float64 `xml:"line-rate,attr"`
	BranchRate float64 `xml:"branch-rate,attr"`
	Classes    []Class `xml:"classes>class"`
}

// Class holds the line data for a single class or source file
type Class struct {
	Name       string   `xml:"name,attr"`
	Filename   string   `xml:"filename,attr"`
	LineRate   float64  `xml:"line-rate,attr"`
	BranchRate float64  `xml:"branch-rate,attr"`
	Methods    []Method `xml:"methods>method"`
	Lines      []Line   `xml:"lines>line"`
}

// Method holds the lines belonging to one method of a class
type Method struct {
	Name       string  `xml:"name,attr"`
	Signature  string  `xml:"signature,attr"`
	LineRate   float64 `xml:"line-rate,attr"`
	BranchRate float64 `xml:"branch-rate,attr"`
	Lines      []Line  `xml:"lines>line"`
}

// Line is one executable source line and its hit count
type Line struct {
	Number            int    `xml:"number,attr"`
	Hits              int64  `xml:"hits,attr"`
	Branch            bool   `xml:"branch,attr"`
	ConditionCoverage string `xml:"condition-coverage,attr"`
}

// Covered reports whether the line was executed at least once
func (l Line) Covered() bool {
	return l.Hits > 0
}

// MergedLines returns every line recorded for the class, both class-level
// and method-level, keyed by line number. Duplicate numbers collapse into
// one entry carrying the highest hit count. The result is ordered by line
// number.
func (c Class) MergedLines() []Line {
	byNumber := make(map[int]Line)
	add := func(lines []Line) {
		for _, l := range lines {
			if prev, ok := byNumber[l.Number]; ok {
				if l.Hits > prev.Hits {
					prev.Hits = l.Hits
				}
				prev.Branch = prev.Branch || l.Branch
				if prev.ConditionCoverage == "" {
					prev.ConditionCoverage = l.ConditionCoverage
				}
				byNumber[l.Number] = prev
				continue
			}
			byNumber[l.Number] = l
		}
	}

	add(c.Lines)
	for _, m := range c.Methods {
		add(m.Lines)
	}

	merged := make([]Line, 0, len(byNumber))
	for _, l := range byNumber {
		merged = append(merged, l)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Number < merged[j].Number
	})
	return merged
}

// GeneratedAt converts the root timestamp attribute. Cobertura producers
// disagree on units: coverlet writes seconds, the Java tool milliseconds.
func (c *Coverage) GeneratedAt() (time.Time, bool) {
	raw := strings.TrimSpace(c.Timestamp)
	if raw == "" {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}
