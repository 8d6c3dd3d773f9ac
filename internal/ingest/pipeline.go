package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/citegraph/internal/graph"
	"github.com/matsen/citegraph/internal/paper"
)

// DefaultProgressEvery is how many citation lines pass between progress logs.
const DefaultProgressEvery = 100000

// Recorder receives ingestion counters. observability.Metrics implements it.
type Recorder interface {
	RecordProcessed(kind string)
	RecordSkipped(kind, reason string)
	RecordPlaceholder(side string)
}

type nopRecorder struct{}

func (nopRecorder) RecordProcessed(string) {}
func (nopRecorder) RecordSkipped(string, string) {}
func (nopRecorder) RecordPlaceholder(string) {}

// Inputs lists the files for one pipeline run.
type Inputs struct {
	Metadata  []string
	Citations []string
}

// Report summarizes a pipeline run.
type Report struct {
	Metadata  []SourceStats `json:"metadata"`
	Citations []SourceStats `json:"citations"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Totals sums the per-source counters.
type Totals struct {
	MetadataProcessed  int `json:"metadata_processed"`
	MetadataSkipped    int `json:"metadata_skipped"`
	MetadataDuplicates int `json:"metadata_duplicates"`
	CitationsProcessed int `json:"citations_processed"`
	CitationsSkipped   int `json:"citations_skipped"`
	CitingCreated      int `json:"citing_created"`
	CitedCreated       int `json:"cited_created"`
}

// Totals aggregates the report across sources.
func (r *Report) Totals() Totals {
	var t Totals
	for _, s := range r.Metadata {
		t.MetadataProcessed += s.Processed
		t.MetadataSkipped += s.Skipped
		t.MetadataDuplicates += s.Duplicates
	}
	for _, s := range r.Citations {
		t.CitationsProcessed += s.Processed
		t.CitationsSkipped += s.Skipped
		t.CitingCreated += s.CitingCreated
		t.CitedCreated += s.CitedCreated
	}
	return t
}

// Pipeline loads metadata and citation events into a graph.
type Pipeline struct {
	graph         *graph.Graph
	logger        zerolog.Logger
	recorder      Recorder
	workers       int
	progressEvery int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds how many citation files are read at once.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithRecorder sets the counter sink.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithProgressEvery sets the progress log interval in lines.
func WithProgressEvery(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.progressEvery = n
		}
	}
}

// NewPipeline creates a pipeline writing into g.
func NewPipeline(g *graph.Graph, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		graph:         g,
		logger:        logger.With().Str("component", "ingest").Logger(),
		recorder:      nopRecorder{},
		workers:       4,
		progressEvery: DefaultProgressEvery,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests all metadata files in order, then the citation files
// concurrently. Metadata goes first so that papers with records are
// authoritative before any event can create them as placeholders.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Report, error) {
	start := time.Now()
	report := &Report{}

	for _, path := range in.Metadata {
		stats, err := p.ingestFile(ctx, path, p.IngestMetadata)
		report.Metadata = append(report.Metadata, stats)
		if err != nil {
			return report, err
		}
	}

	report.Citations = make([]SourceStats, len(in.Citations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range in.Citations {
		g.Go(func() error {
			stats, err := p.ingestFile(gctx, path, p.IngestCitations)
			report.Citations[i] = stats
			return err
		})
	}
	err := g.Wait()
	report.Elapsed = time.Since(start)
	if err != nil {
		return report, err
	}

	t := report.Totals()
	p.logger.Info().
		Int("metadata_processed", t.MetadataProcessed).
		Int("metadata_skipped", t.MetadataSkipped).
		Int("citations_processed", t.CitationsProcessed).
		Int("citations_skipped", t.CitationsSkipped).
		Int("citing_created", t.CitingCreated).
		Dur("elapsed", report.Elapsed).
		Msg("ingestion complete")
	return report, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, path string, read func(context.Context, io.Reader, string) (SourceStats, error)) (SourceStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return SourceStats{Source: path}, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	return read(ctx, f, filepath.Base(path))
}

// IngestMetadata reads a metadata CSV into the graph. The first record
// for an ID wins; later ones are counted as duplicates.
func (p *Pipeline) IngestMetadata(ctx context.Context, r io.Reader, source string) (SourceStats, error) {
	start := time.Now()
	duplicates := 0
	stats, err := ReadMetadataCSV(ctx, r, source, func(rec paper.Paper) error {
		_, created, err := p.graph.UpsertNode(rec.ID, &rec)
		if err != nil {
			return err
		}
		if !created {
			duplicates++
		}
		p.recorder.RecordProcessed(SourceMetadata)
		return nil
	}, p.skipHandler(SourceMetadata))
	stats.Duplicates = duplicates
	if err != nil {
		return stats, fmt.Errorf("ingesting metadata %s: %w", source, err)
	}

	p.logger.Info().
		Str("source", source).
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("duplicates", duplicates).
		Dur("elapsed", time.Since(start)).
		Msg("metadata loaded")
	return stats, nil
}

// IngestCitations reads a citation-event stream into the graph.
func (p *Pipeline) IngestCitations(ctx context.Context, r io.Reader, source string) (SourceStats, error) {
	start := time.Now()
	var citing, cited int
	stats, err := ReadCitationEvents(ctx, r, source, func(line int, ev CitationEvent) error {
		ins, err := p.graph.AddCitation(ev.CitingID, ev.Cited)
		if err != nil {
			return err
		}
		if ins.CitingCreated {
			citing++
			p.recorder.RecordPlaceholder("citing")
		}
		if ins.CitedCreated {
			cited++
			p.recorder.RecordPlaceholder("cited")
		}
		p.recorder.RecordProcessed(SourceCitations)
		if line%p.progressEvery == 0 {
			p.logger.Info().Str("source", source).Int("lines", line).Msg("ingest progress")
		}
		return nil
	}, p.skipHandler(SourceCitations))
	stats.CitingCreated = citing
	stats.CitedCreated = cited
	if err != nil {
		return stats, fmt.Errorf("ingesting citations %s: %w", source, err)
	}

	p.logger.Info().
		Str("source", source).
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("citing_created", citing).
		Dur("elapsed", time.Since(start)).
		Msg("citations loaded")
	return stats, nil
}

func (p *Pipeline) skipHandler(kind string) SkipFunc {
	return func(e *RecordError) {
		p.recorder.RecordSkipped(kind, e.Kind())
		p.logger.Warn().
			Str("source", e.Source).
			Int("line", e.Line).
			Str("reason", e.Kind()).
			Err(e.Err).
			Msg("skipping record")
	}
}
