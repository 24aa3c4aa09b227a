package cobertura

import (
	"fmt"
	"path"
	"sort"

	"golang.org/x/tools/cover"
)

// ParseGoProfile reads a `go test -coverprofile` file and converts it
func ParseGoProfile(filename string) (*Coverage, error) {
	profiles, err := cover.ParseProfiles(filename)
	if err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	return FromProfiles(profiles), nil
}

// FromProfiles maps Go cover profiles onto the Cobertura model: one class
// per source file, one package per directory. A line touched by several
// blocks takes the highest block count.
func FromProfiles(profiles []*cover.Profile) *Coverage {
	cov := &Coverage{Version: "go"}
	pkgIndex := make(map[string]int)

	var totalLines, coveredLines int64

	for _, p := range profiles {
		hits := make(map[int]int64)
		for _, b := range p.Blocks {
			if b.NumStmt == 0 {
				continue
			}
			for ln := b.StartLine; ln <= b.EndLine; ln++ {
				if c, ok := hits[ln]; !ok || int64(b.Count) > c {
					hits[ln] = int64(b.Count)
				}
			}
		}
		if len(hits) == 0 {
			continue
		}

		class := Class{
			Name:     p.FileName,
			Filename: p.FileName,
			Lines:    make([]Line, 0, len(hits)),
		}
		var covered int64
		for ln, n := range hits {
			class.Lines = append(class.Lines, Line{Number: ln, Hits: n})
			if n > 0 {
				covered++
			}
		}
		sort.Slice(class.Lines, func(i, j int) bool {
			return class.Lines[i].Number < class.Lines[j].Number
		})
		class.LineRate = float64(covered) / float64(len(class.Lines))

		totalLines += int64(len(class.Lines))
		coveredLines += covered

		dir := path.Dir(p.FileName)
		idx, ok := pkgIndex[dir]
		if !ok {
			idx = len(cov.Packages)
			pkgIndex[dir] = idx
			cov.Packages = append(cov.Packages, Package{Name: dir})
		}
		cov.Packages[idx].Classes = append(cov.Packages[idx].Classes, class)
	}

	for i := range cov.Packages {
		var total, hit int
		for _, c := range cov.Packages[i].Classes {
			for _, l := range c.Lines {
				total++
				if l.Covered() {
					hit++
				}
			}
		}
		if total > 0 {
			cov.Packages[i].LineRate = float64(hit) / float64(total)
		}
	}

	cov.LinesValid = totalLines
	cov.LinesCovered = coveredLines
	if totalLines > 0 {
		cov.LineRate = float64(coveredLines) / float64(totalLines)
	}

	return cov
}
