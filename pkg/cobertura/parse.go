package cobertura

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/net/html/charset"
)

// ErrNotFound is returned when no coverage file matches the search pattern
var ErrNotFound = errors.New("coverage file not found")

// Parse decodes a Cobertura document
func Parse(r io.Reader) (*Coverage, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var cov Coverage
	if err := dec.Decode(&cov); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode coverage: empty document")
		}
		return nil, fmt.Errorf("decode coverage: %w", err)
	}

	return &cov, nil
}

// ParseFile opens and decodes a Cobertura file
func ParseFile(path string) (*Coverage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open coverage file: %w", err)
	}
	defer f.Close()

	cov, err := Parse(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cov, nil
}
