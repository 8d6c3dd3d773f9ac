// Package main provides the citegraph CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/matsen/citegraph/internal/config"
	"github.com/matsen/citegraph/internal/observability"
	"github.com/matsen/citegraph/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	configPath string
	logLevel   string
	logFormat  string

	// Set by loadRuntime before any command runs.
	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "citegraph",
	Short: "Build and rank citation graphs",
	Long: `citegraph reconciles paper metadata and citation events into a single
citation graph and ranks every paper with a citation-biased PageRank.

Core features:
  - Ingest metadata CSV and citation-event JSONL files
  - Rank papers and export DOT, CSV, SQLite and HTML views
  - Fetch reference lists from Semantic Scholar
  - Query the stored graph (top, show, search)

All commands output JSON by default; use --human for readable text.
Logs go to stderr.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./citegraph.yml or ~/.config/citegraph/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console, json)")
	rootCmd.Version = Version
}

// loadRuntime loads configuration and builds the logger. Flags override
// the config file.
func loadRuntime(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	cfg = loaded

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	logger = observability.NewLogger(cfg.Logging)
	if cfg.Path != "" {
		logger.Debug().Str("path", cfg.Path).Msg("loaded config")
	}
	return nil
}

// dbPath returns the database path from the flag or the config.
func dbPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Output.Resolve(cfg.Output.DB)
}

// mustOpenDatabase opens an existing SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(path string) *storage.DB {
	if _, err := os.Stat(path); err != nil {
		exitWithError(ExitConfigError, "database not found: %s\n\nRun 'citegraph build' first.", path)
	}
	db, err := storage.OpenDB(path)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}
