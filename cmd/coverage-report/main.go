package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jupierce/coverage-report/pkg/config"
	"github.com/jupierce/coverage-report/pkg/log"
)

var (
	version = "dev"

	// Global flags
	configPath  string
	verbosity   string
	logDir      string
	inputPath   string
	searchRoot  string
	pattern     string
	inputFormat string

	// Root command
	rootCmd = &cobra.Command{
		Use:   "coverage-report",
		Short: "Render a Cobertura coverage report as a static HTML page",
		Long: `coverage-report finds a Cobertura XML coverage report, extracts the
aggregate line and branch coverage plus per-class line coverage, and writes a
color coded HTML summary page.

Running without a subcommand is the same as 'coverage-report render'.`,
		Example: `  # Render the first TestResults/*/coverage.cobertura.xml into CoverageReport/index.html
  coverage-report

  # Render a specific file into a custom directory
  coverage-report --input build/coverage.xml --output-dir site/coverage

  # Render a Go cover profile and fail when line coverage drops below 70%
  coverage-report --format go --input cover.out --fail-under 70`,
		Version:       version,
		RunE:          runRender,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (defaults to "+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "info", "Log verbosity (error, info, debug, trace)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Also write logs to a timestamped file in this directory")
	rootCmd.PersistentFlags().StringVarP(&inputPath, "input", "i", "", "Coverage file to read (skips the search)")
	rootCmd.PersistentFlags().StringVar(&searchRoot, "root", ".", "Directory the search pattern is relative to")
	rootCmd.PersistentFlags().StringVarP(&pattern, "pattern", "p", "", "Glob used to find the coverage file, supports ** (default TestResults/*/coverage.cobertura.xml)")
	rootCmd.PersistentFlags().StringVar(&inputFormat, "format", "", "Input format (cobertura, go)")

	addRenderFlags(rootCmd.Flags())
}

// createLogger builds the console/file logger from the global flags
func createLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(verbosity)
	if err != nil {
		return nil, err
	}

	logger, err := log.New(level, logDir)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// resolveConfig merges defaults, the config file, COVERAGE_REPORT_* variables
// and explicitly set flags, in increasing order of precedence.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	overrideString(flags, "input", &cfg.Input, inputPath)
	overrideString(flags, "root", &cfg.Root, searchRoot)
	overrideString(flags, "pattern", &cfg.Pattern, pattern)
	overrideString(flags, "format", &cfg.Format, inputFormat)
	applyRenderFlags(flags, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideString(flags *pflag.FlagSet, name string, dst *string, value string) {
	if f := flags.Lookup(name); f != nil && f.Changed {
		*dst = value
	}
}

func overrideFloat(flags *pflag.FlagSet, name string, dst *float64, value float64) {
	if f := flags.Lookup(name); f != nil && f.Changed {
		*dst = value
	}
}

func overrideBool(flags *pflag.FlagSet, name string, dst *bool, value bool) {
	if f := flags.Lookup(name); f != nil && f.Changed {
		*dst = value
	}
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for a failed coverage gate and 1 for any other error
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var gate *gateError
	if errors.As(err, &gate) {
		return 2
	}
	return 1
}
