// Package config loads citegraph settings from YAML, .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/matsen/citegraph/internal/observability"
	"github.com/matsen/citegraph/internal/rank"
	"github.com/matsen/citegraph/internal/s2"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full citegraph configuration.
type Config struct {
	Rank    rank.Options                `yaml:"rank"`
	Ingest  IngestConfig                `yaml:"ingest"`
	Output  OutputConfig                `yaml:"output"`
	Logging observability.LoggingConfig `yaml:"logging"`
	S2      S2Config                    `yaml:"s2"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-"`
}

// IngestConfig controls input reading.
type IngestConfig struct {
	Workers       int `yaml:"workers"`        // citation files read at once
	ProgressEvery int `yaml:"progress_every"` // lines between progress logs
}

// OutputConfig names the files a build writes. Relative names are resolved
// against Dir.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	DB          string `yaml:"db"`
	DOT         string `yaml:"dot"`
	RankedDOT   string `yaml:"ranked_dot"`
	NodesCSV    string `yaml:"nodes_csv"`
	EdgesCSV    string `yaml:"edges_csv"`
	HTML        string `yaml:"html"`
	HTMLNodes   int    `yaml:"html_nodes"`
	MetricsFile string `yaml:"metrics_file"`
}

// S2Config configures the Semantic Scholar reference fetcher.
type S2Config struct {
	APIKey     string  `yaml:"api_key,omitempty"`
	BaseURL    string  `yaml:"base_url,omitempty"`
	RateLimit  float64 `yaml:"rate_limit"` // requests per second
	PageSize   int     `yaml:"page_size"`
	MaxRetries int     `yaml:"max_retries"`
	Workers    int     `yaml:"workers"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Rank: rank.DefaultOptions(),
		Ingest: IngestConfig{
			Workers:       4,
			ProgressEvery: 100000,
		},
		Output: OutputConfig{
			Dir:       "data",
			DB:        "citegraph.db",
			DOT:       "citation_network.dot",
			RankedDOT: "citation_network_with_pagerank.dot",
			NodesCSV:  "citation_nodes.csv",
			EdgesCSV:  "citation_edges.csv",
			HTML:      "citation_graph.html",
			HTMLNodes: 200,
		},
		Logging: observability.DefaultLoggingConfig(),
		S2: S2Config{
			BaseURL:    s2.BaseURL,
			RateLimit:  s2.RateLimit,
			PageSize:   s2.DefaultPageSize,
			MaxRetries: s2.DefaultMaxRetries,
			Workers:    5,
		},
	}
}

// Resolve returns name joined to the output directory. Empty names stay
// empty and absolute names are returned as is.
func (o OutputConfig) Resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.Dir, name)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Rank.Validate(); err != nil {
		return fmt.Errorf("%w: rank: %v", ErrInvalidConfig, err)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("%w: ingest.workers must be positive, got %d", ErrInvalidConfig, c.Ingest.Workers)
	}
	if c.Ingest.ProgressEvery <= 0 {
		return fmt.Errorf("%w: ingest.progress_every must be positive, got %d", ErrInvalidConfig, c.Ingest.ProgressEvery)
	}
	if c.Output.HTMLNodes < 0 {
		return fmt.Errorf("%w: output.html_nodes must not be negative", ErrInvalidConfig)
	}
	if c.S2.RateLimit <= 0 {
		return fmt.Errorf("%w: s2.rate_limit must be positive, got %v", ErrInvalidConfig, c.S2.RateLimit)
	}
	if c.S2.PageSize <= 0 || c.S2.PageSize > s2.DefaultPageSize {
		return fmt.Errorf("%w: s2.page_size must be in 1..%d, got %d", ErrInvalidConfig, s2.DefaultPageSize, c.S2.PageSize)
	}
	if c.S2.MaxRetries < 0 {
		return fmt.Errorf("%w: s2.max_retries must not be negative", ErrInvalidConfig)
	}
	if c.S2.Workers <= 0 {
		return fmt.Errorf("%w: s2.workers must be positive, got %d", ErrInvalidConfig, c.S2.Workers)
	}
	return nil
}
