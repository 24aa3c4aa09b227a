package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

const (
	DefaultOutputDir = "CoverageReport"
	IndexFileName    = "index.html"

	// pageMode keeps the page readable by web servers and artifact hosts
	pageMode os.FileMode = 0644
)

// WriteFile renders the summary into <outputDir>/index.html, creating the
// directory when needed. The file is replaced atomically so a browser
// never sees a half written page.
func WriteFile(outputDir string, s *Summary) (string, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, s); err != nil {
		return "", err
	}

	path := filepath.Join(outputDir, IndexFileName)
	if err := atomic.WriteFile(path, &buf); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	// atomic.WriteFile creates its temp file 0600
	if err := os.Chmod(path, pageMode); err != nil {
		return "", fmt.Errorf("chmod %s: %w", path, err)
	}
	return path, nil
}
