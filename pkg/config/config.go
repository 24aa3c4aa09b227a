package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jupierce/coverage-report/pkg/cobertura"
	"github.com/jupierce/coverage-report/pkg/report"
)

// DefaultFile is picked up from the working directory when --config is not given
const DefaultFile = ".coverage-report.yaml"

// EnvPrefix prefixes every environment override
const EnvPrefix = "COVERAGE_REPORT_"

// Input formats
const (
	FormatCobertura = "cobertura"
	FormatGo        = "go"
)

// BigQuery holds the export target
type BigQuery struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
	Table   string `yaml:"table"`
}

// Config is the merged configuration of one run
type Config struct {
	Input       string            `yaml:"input"`
	Root        string            `yaml:"root"`
	Pattern     string            `yaml:"pattern"`
	Format      string            `yaml:"format"`
	OutputDir   string            `yaml:"output_dir"`
	Title       string            `yaml:"title"`
	Notes       string            `yaml:"notes"`
	Sort        string            `yaml:"sort"`
	Thresholds  report.Thresholds `yaml:"thresholds"`
	FailUnder   float64           `yaml:"fail_under"`
	FailMissing bool              `yaml:"fail_missing"`
	HistoryDB   string            `yaml:"history_db"`
	BigQuery    BigQuery          `yaml:"bigquery"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Root:       ".",
		Pattern:    cobertura.DefaultPattern,
		Format:     FormatCobertura,
		OutputDir:  report.DefaultOutputDir,
		Title:      report.DefaultTitle,
		Sort:       string(report.SortDocument),
		Thresholds: report.DefaultThresholds,
		BigQuery:   BigQuery{Table: "class_coverage"},
	}
}

// Load reads a YAML file over the defaults. An empty path falls back to
// DefaultFile, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment.
// Missing files are ignored; existing variables are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from COVERAGE_REPORT_* variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	str := map[string]*string{
		"INPUT":            &c.Input,
		"ROOT":             &c.Root,
		"PATTERN":          &c.Pattern,
		"FORMAT":           &c.Format,
		"OUTPUT_DIR":       &c.OutputDir,
		"TITLE":            &c.Title,
		"NOTES":            &c.Notes,
		"SORT":             &c.Sort,
		"HISTORY_DB":       &c.HistoryDB,
		"BIGQUERY_PROJECT": &c.BigQuery.Project,
		"BIGQUERY_DATASET": &c.BigQuery.Dataset,
		"BIGQUERY_TABLE":   &c.BigQuery.Table,
	}
	for key, dst := range str {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"THRESHOLD_HIGH":   &c.Thresholds.High,
		"THRESHOLD_MEDIUM": &c.Thresholds.Medium,
		"FAIL_UNDER":       &c.FailUnder,
	}
	for key, dst := range floats {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, key, err)
		}
		*dst = f
	}

	if v, ok := lookup(EnvPrefix + "FAIL_MISSING"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sFAIL_MISSING: %w", EnvPrefix, err)
		}
		c.FailMissing = b
	}

	return nil
}

// Validate checks values that flags, files and env can all set
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if _, err := report.ParseSortOrder(c.Sort); err != nil {
		return err
	}
	switch c.Format {
	case FormatCobertura, FormatGo:
	default:
		return fmt.Errorf("invalid format: %s (valid: cobertura, go)", c.Format)
	}
	if c.FailUnder < 0 || c.FailUnder > 100 {
		return fmt.Errorf("fail-under must be between 0 and 100, got %g", c.FailUnder)
	}
	return nil
}
