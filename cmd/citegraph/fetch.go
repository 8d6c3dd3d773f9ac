package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/citegraph/internal/observability"
	"github.com/matsen/citegraph/internal/s2"
)

var (
	fetchIDsFile     string
	fetchOut         string
	fetchWorkers     int
	fetchNoSkip      bool
	fetchMetricsFile string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [paper-id...]",
	Short: "Fetch reference lists from Semantic Scholar",
	Long: `Fetch the references of each paper from the Semantic Scholar Graph API
and append them to a JSONL file of citation events that 'citegraph build'
can read.

Paper IDs come from arguments and/or --ids (one per line, '-' for stdin,
'#' starts a comment). IDs already present as citingPaperId in the output
file are skipped unless --no-skip is given. Requests are rate limited and
retried with exponential backoff. Set S2_API_KEY for higher limits.

Examples:
  citegraph fetch --ids ids.txt --out data/references.jsonl
  citegraph fetch 649def34f8be52c8b66281af98ae884c09aef38b DOI:10.1093/sysbio/syy032`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchIDsFile, "ids", "", "File of paper IDs, one per line ('-' for stdin)")
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "references.jsonl", "JSONL file to append events to")
	fetchCmd.Flags().IntVar(&fetchWorkers, "workers", 0, "Concurrent papers (overrides s2.workers)")
	fetchCmd.Flags().BoolVar(&fetchNoSkip, "no-skip", false, "Refetch papers already in the output file")
	fetchCmd.Flags().StringVar(&fetchMetricsFile, "metrics-file", "", "Write Prometheus textfile metrics here")
}

// FetchResult is the JSON output of the fetch command.
type FetchResult struct {
	Output string          `json:"output"`
	Stats  s2.HarvestStats `json:"stats"`
}

func runFetch(cmd *cobra.Command, args []string) error {
	var fromFile []string
	if fetchIDsFile != "" {
		var err error
		fromFile, err = readIDs(fetchIDsFile)
		if err != nil {
			exitWithError(ExitDataError, "reading IDs: %v", err)
		}
	}
	ids := mergeIDs(args, fromFile)
	if len(ids) == 0 {
		exitWithError(ExitError, "no paper IDs: pass them as arguments or with --ids")
	}

	skip := map[string]bool{}
	if !fetchNoSkip {
		processed, err := s2.ReadProcessedIDs(fetchOut)
		if err != nil {
			exitWithError(ExitDataError, "reading %s: %v", fetchOut, err)
		}
		skip = processed
	}

	f, err := os.OpenFile(fetchOut, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		exitWithError(ExitError, "opening output: %v", err)
	}
	defer f.Close()

	workers := cfg.S2.Workers
	if fetchWorkers > 0 {
		workers = fetchWorkers
	}

	client := s2.NewClient(
		s2.WithAPIKey(cfg.S2.APIKey),
		s2.WithBaseURL(cfg.S2.BaseURL),
		s2.WithRateLimit(cfg.S2.RateLimit),
		s2.WithPageSize(cfg.S2.PageSize),
		s2.WithRetries(cfg.S2.MaxRetries, s2.DefaultBackoff),
		s2.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w := bufio.NewWriter(f)
	stats, err := client.Harvest(ctx, ids, skip, workers, func(res *s2.FetchResult) error {
		if err := s2.WriteReferences(w, res.References); err != nil {
			return err
		}
		// Flush per paper so an interrupted run keeps what it fetched.
		return w.Flush()
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			exitWithError(ExitError, "interrupted after %d papers", stats.Fetched)
		}
		exitWithError(ExitError, "fetching references: %v", err)
	}

	logger.Info().
		Int("requested", stats.Requested).
		Int("skipped", stats.Skipped).
		Int("fetched", stats.Fetched).
		Int("failed", stats.Failed).
		Int("references", stats.References).
		Msg("fetch complete")

	if fetchMetricsFile != "" {
		metrics := observability.NewMetrics()
		metrics.ObserveHarvest(stats)
		if err := metrics.WriteTextfile(fetchMetricsFile); err != nil {
			exitWithError(ExitError, "writing metrics: %v", err)
		}
	}

	if humanOutput {
		outputHuman("Fetched %d papers (%d references), skipped %d, failed %d, truncated %d\n",
			stats.Fetched, stats.References, stats.Skipped, stats.Failed, stats.Truncated)
		outputHuman("Appended to %s\n", fetchOut)
	} else {
		outputJSON(FetchResult{Output: fetchOut, Stats: stats})
	}

	if stats.Failed > 0 && stats.Fetched == 0 {
		os.Exit(ExitAPIError)
	}
	return nil
}

// readIDs reads one paper ID per line, ignoring blanks and # comments.
func readIDs(path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return parseIDs(r)
}

func parseIDs(r io.Reader) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning IDs: %w", err)
	}
	return ids, nil
}

// mergeIDs concatenates ID lists, trimming blanks and keeping only the
// first occurrence of each ID so no paper is fetched twice.
func mergeIDs(lists ...[]string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
