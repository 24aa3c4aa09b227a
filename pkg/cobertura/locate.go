package cobertura

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern is where `dotnet test --collect "XPlat Code Coverage"`
// drops its report, one GUID directory per run.
const DefaultPattern = "TestResults/*/coverage.cobertura.xml"

// Find returns every file under root matching pattern, sorted lexically.
// Relative patterns, including ./ and ../ forms, are resolved against root;
// absolute patterns ignore it. The search starts at the pattern's static
// prefix.
func Find(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if root == "" {
		root = "."
	}

	full := pattern
	if !filepath.IsAbs(pattern) {
		full = filepath.Join(root, pattern)
	}
	base, glob := doublestar.SplitPattern(path.Clean(filepath.ToSlash(full)))
	base = filepath.FromSlash(base)

	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	matches, err := doublestar.Glob(os.DirFS(base), glob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("match pattern %q: %w", pattern, err)
	}

	sort.Strings(matches)
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(base, filepath.FromSlash(m)))
	}
	return paths, nil
}

// Locate returns the first file matching pattern, or ErrNotFound
func Locate(root, pattern string) (string, error) {
	paths, err := Find(root, pattern)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		if pattern == "" {
			pattern = DefaultPattern
		}
		return "", fmt.Errorf("%w: no match for %s", ErrNotFound, pattern)
	}
	return paths[0], nil
}
