package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/citegraph/internal/export"
	"github.com/matsen/citegraph/internal/graph"
	"github.com/matsen/citegraph/internal/ingest"
	"github.com/matsen/citegraph/internal/observability"
	"github.com/matsen/citegraph/internal/rank"
	"github.com/matsen/citegraph/internal/storage"
	"github.com/matsen/citegraph/internal/viz"
)

var (
	buildMetadata    []string
	buildCitations   []string
	buildOutDir      string
	buildWorkers     int
	buildNoDB        bool
	buildNoDOT       bool
	buildNoCSV       bool
	buildNoHTML      bool
	buildMetricsFile string
	buildTop         int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Ingest inputs, rank every paper, and write outputs",
	Long: `Build the citation graph and rank it.

Metadata files (CSV: id,url,title,year,citationCount,abstract with a header
row) are loaded first so those papers are authoritative. Citation-event
files (JSONL, one {"citingPaperId", "citedPaper"} object per line) are then
read concurrently. Malformed records are skipped and counted.

Outputs are written to the output directory unless disabled:
  citation_network.dot                 graph without ranks
  citation_network_with_pagerank.dot   graph with ranks
  citation_nodes.csv, citation_edges.csv
  citegraph.db                         SQLite nodes and paper_edges tables
  citation_graph.html                  interactive view of the top papers

Examples:
  citegraph build --metadata papers.csv --citations refs.jsonl
  citegraph build --metadata papers.csv --citations a.jsonl,b.jsonl --out-dir out --human`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringSliceVar(&buildMetadata, "metadata", nil, "Metadata CSV file(s)")
	buildCmd.Flags().StringSliceVar(&buildCitations, "citations", nil, "Citation-event JSONL file(s)")
	buildCmd.Flags().StringVar(&buildOutDir, "out-dir", "", "Output directory (overrides output.dir)")
	buildCmd.Flags().IntVar(&buildWorkers, "workers", 0, "Citation files read at once (overrides ingest.workers)")
	buildCmd.Flags().BoolVar(&buildNoDB, "no-db", false, "Skip the SQLite database")
	buildCmd.Flags().BoolVar(&buildNoDOT, "no-dot", false, "Skip the DOT files")
	buildCmd.Flags().BoolVar(&buildNoCSV, "no-csv", false, "Skip the CSV files")
	buildCmd.Flags().BoolVar(&buildNoHTML, "no-html", false, "Skip the HTML view")
	buildCmd.Flags().StringVar(&buildMetricsFile, "metrics-file", "", "Write Prometheus textfile metrics here")
	buildCmd.Flags().IntVarP(&buildTop, "top", "n", 10, "Number of top papers in the summary")
}

// BuildResult is the JSON output of the build command.
type BuildResult struct {
	Ingest  ingest.Totals        `json:"ingest"`
	Sources []ingest.SourceStats `json:"sources"`
	Graph   graph.Stats          `json:"graph"`

	DuplicatePairs int `json:"duplicate_pairs"`

	Rank    RankSummary       `json:"rank"`
	Top     []rank.Ranked     `json:"top"`
	Outputs map[string]string `json:"outputs"`
	Timings PhaseTimings      `json:"timings"`
}

// RankSummary describes the solver run.
type RankSummary struct {
	RunID      string  `json:"run_id"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Delta      float64 `json:"delta"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Dangling   int     `json:"dangling"`
}

// PhaseTimings holds wall times in seconds.
type PhaseTimings struct {
	Ingest float64 `json:"ingest"`
	Rank   float64 `json:"rank"`
	Output float64 `json:"output"`
	Total  float64 `json:"total"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	if len(buildMetadata) == 0 && len(buildCitations) == 0 {
		exitWithError(ExitError, "no inputs: pass --metadata and/or --citations")
	}
	if buildOutDir != "" {
		cfg.Output.Dir = buildOutDir
	}
	if buildWorkers > 0 {
		cfg.Ingest.Workers = buildWorkers
	}
	if buildMetricsFile != "" {
		cfg.Output.MetricsFile = buildMetricsFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	metrics := observability.NewMetrics()
	start := time.Now()

	// Ingest
	g := graph.New()
	pipeline := ingest.NewPipeline(g, logger,
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithProgressEvery(cfg.Ingest.ProgressEvery),
		ingest.WithRecorder(metrics),
	)
	report, err := pipeline.Run(ctx, ingest.Inputs{Metadata: buildMetadata, Citations: buildCitations})
	if err != nil {
		exitWithError(ExitDataError, "ingesting inputs: %v", err)
	}
	ingestTime := time.Since(start)
	metrics.ObservePhase("ingest", ingestTime)
	logger.Info().Dur("elapsed", ingestTime).Msg("graph built")

	snap := g.Freeze()
	metrics.ObserveGraph(snap)
	dups := snap.DuplicateArcs()
	stats := snap.Stats()
	logger.Info().
		Int("nodes", stats.Nodes).
		Int("placeholders", stats.Placeholders).
		Int("edges", stats.Edges).
		Int("duplicate_pairs", len(dups)).
		Msg("graph frozen")

	// Rank
	rankStart := time.Now()
	res, err := rank.NewEngine(cfg.Rank, logger).Rank(snap)
	if err != nil {
		exitWithError(ExitConfigError, "ranking: %v", err)
	}
	rankTime := time.Since(rankStart)
	metrics.ObservePhase("rank", rankTime)
	metrics.ObserveRank(res)

	// Outputs
	outStart := time.Now()
	outputs, err := writeBuildOutputs(ctx, snap, res)
	if err != nil {
		exitWithError(ExitError, "writing outputs: %v", err)
	}
	outTime := time.Since(outStart)
	metrics.ObservePhase("output", outTime)
	logger.Info().Dur("elapsed", outTime).Int("files", len(outputs)).Msg("outputs written")

	if cfg.Output.MetricsFile != "" {
		path := cfg.Output.Resolve(cfg.Output.MetricsFile)
		if err := metrics.WriteTextfile(path); err != nil {
			exitWithError(ExitError, "writing metrics: %v", err)
		}
		outputs["metrics"] = path
	}

	result := BuildResult{
		Ingest:         report.Totals(),
		Sources:        append(append([]ingest.SourceStats{}, report.Metadata...), report.Citations...),
		Graph:          stats,
		DuplicatePairs: len(dups),
		Rank: RankSummary{
			RunID:      res.RunID.String(),
			Iterations: res.Iterations,
			Converged:  res.Converged,
			Delta:      res.Delta,
			Min:        res.Min,
			Max:        res.Max,
			Dangling:   res.Dangling,
		},
		Top:     res.Top(snap, buildTop),
		Outputs: outputs,
		Timings: PhaseTimings{
			Ingest: ingestTime.Seconds(),
			Rank:   rankTime.Seconds(),
			Output: outTime.Seconds(),
			Total:  time.Since(start).Seconds(),
		},
	}

	if humanOutput {
		printBuildHuman(result)
		return nil
	}
	return outputJSON(result)
}

// writeBuildOutputs writes every enabled sink and returns kind -> path.
func writeBuildOutputs(ctx context.Context, snap *graph.Snapshot, res *rank.Result) (map[string]string, error) {
	out := cfg.Output
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	written := make(map[string]string)

	write := func(kind, name string, fn func(io.Writer) error) error {
		if name == "" {
			return nil
		}
		path := out.Resolve(name)
		if err := writeFile(path, fn); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		written[kind] = path
		return nil
	}

	if !buildNoDOT {
		if err := write("dot", out.DOT, func(w io.Writer) error {
			return export.WriteDOT(w, snap, nil)
		}); err != nil {
			return nil, err
		}
		if err := write("ranked_dot", out.RankedDOT, func(w io.Writer) error {
			return export.WriteDOT(w, snap, res.Scores)
		}); err != nil {
			return nil, err
		}
	}

	if !buildNoCSV {
		if err := write("nodes_csv", out.NodesCSV, func(w io.Writer) error {
			return export.WriteNodesCSV(w, snap, res.Scores)
		}); err != nil {
			return nil, err
		}
		if err := write("edges_csv", out.EdgesCSV, func(w io.Writer) error {
			return export.WriteEdgesCSV(w, snap)
		}); err != nil {
			return nil, err
		}
	}

	if !buildNoDB && out.DB != "" {
		path := out.Resolve(out.DB)
		db, err := storage.OpenDB(path)
		if err != nil {
			return nil, err
		}
		err = db.StoreGraph(ctx, snap, res)
		db.Close()
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		written["db"] = path
	}

	if !buildNoHTML {
		if err := write("html", out.HTML, func(w io.Writer) error {
			page, err := viz.GenerateHTML(viz.BuildGraph(snap, res.Scores, out.HTMLNodes), viz.DefaultOptions())
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, page)
			return err
		}); err != nil {
			return nil, err
		}
	}

	return written, nil
}

// writeFile creates path and streams fn's output into it.
func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printBuildHuman(r BuildResult) {
	outputHuman("Metadata records: %d processed, %d skipped, %d duplicate IDs\n",
		r.Ingest.MetadataProcessed, r.Ingest.MetadataSkipped, r.Ingest.MetadataDuplicates)
	outputHuman("Citation events:  %d processed, %d skipped\n",
		r.Ingest.CitationsProcessed, r.Ingest.CitationsSkipped)
	outputHuman("Citing nodes created: %d\n", r.Ingest.CitingCreated)
	outputHuman("Graph: %d nodes (%d placeholders), %d edges, %d repeated pairs\n",
		r.Graph.Nodes, r.Graph.Placeholders, r.Graph.Edges, r.DuplicatePairs)

	status := "converged"
	if !r.Rank.Converged {
		status = "hit iteration cap"
	}
	outputHuman("PageRank: %d iterations (%s), delta %.3g\n", r.Rank.Iterations, status, r.Rank.Delta)

	if len(r.Top) > 0 {
		outputHuman("\nTop papers:\n")
		for i, p := range r.Top {
			outputHuman("%3d. %.4f  %s\n", i+1, p.Rank, truncateString(p.Title, ListTitleMaxLen))
		}
	}

	if len(r.Outputs) > 0 {
		outputHuman("\nOutputs:\n")
		for _, kind := range []string{"dot", "ranked_dot", "nodes_csv", "edges_csv", "db", "html", "metrics"} {
			if path, ok := r.Outputs[kind]; ok {
				outputHuman("  %-11s %s\n", kind, path)
			}
		}
	}

	outputHuman("\nTime: ingest %s, rank %s, output %s, total %s\n",
		formatDuration(secs(r.Timings.Ingest)), formatDuration(secs(r.Timings.Rank)),
		formatDuration(secs(r.Timings.Output)), formatDuration(secs(r.Timings.Total)))
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
