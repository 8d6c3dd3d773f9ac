package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matsen/citegraph/internal/graph"
	"github.com/matsen/citegraph/internal/rank"
	"github.com/matsen/citegraph/internal/s2"
)

// Namespace prefixes every citegraph metric.
const Namespace = "citegraph"

// Metrics holds the counters and gauges of one citegraph run. They live on
// a private registry so a batch run can dump them to a textfile without
// touching the process-wide default registry.
type Metrics struct {
	registry *prometheus.Registry

	// RecordsProcessed counts input records accepted, by kind (metadata, citations).
	RecordsProcessed *prometheus.CounterVec

	// RecordsSkipped counts input records dropped, by kind and reason.
	RecordsSkipped *prometheus.CounterVec

	// PlaceholdersCreated counts nodes synthesized from citation events, by side.
	PlaceholdersCreated *prometheus.CounterVec

	GraphNodes        prometheus.Gauge
	GraphPlaceholders prometheus.Gauge
	GraphEdges        prometheus.Gauge
	GraphDuplicates   prometheus.Gauge

	RankIterations prometheus.Gauge
	RankDelta      prometheus.Gauge
	RankConverged  prometheus.Gauge
	RankDangling   prometheus.Gauge

	// PhaseDuration records the wall time of each pipeline phase in seconds.
	PhaseDuration *prometheus.GaugeVec

	// FetchPapers counts reference fetches by outcome (fetched, skipped, failed, truncated).
	FetchPapers *prometheus.CounterVec

	// FetchReferences counts reference events written by the fetcher.
	FetchReferences prometheus.Counter
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RecordsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "records_processed_total",
			Help:      "Input records accepted.",
		}, []string{"kind"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "records_skipped_total",
			Help:      "Input records skipped.",
		}, []string{"kind", "reason"}),
		PlaceholdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "placeholders_created_total",
			Help:      "Nodes synthesized from citation events.",
		}, []string{"side"}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "graph", Name: "nodes",
			Help: "Nodes in the frozen graph.",
		}),
		GraphPlaceholders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "graph", Name: "placeholder_nodes",
			Help: "Placeholder nodes in the frozen graph.",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "graph", Name: "edges",
			Help: "Edges in the frozen graph, parallel edges included.",
		}),
		GraphDuplicates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "graph", Name: "duplicate_pairs",
			Help: "Distinct citing/cited pairs recorded more than once.",
		}),
		RankIterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "rank", Name: "iterations",
			Help: "Power iterations run.",
		}),
		RankDelta: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "rank", Name: "final_delta",
			Help: "L2 distance between the last two rank vectors.",
		}),
		RankConverged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "rank", Name: "converged",
			Help: "1 if the tolerance was reached before the iteration cap.",
		}),
		RankDangling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "rank", Name: "dangling_nodes",
			Help: "Nodes with no outgoing citations.",
		}),
		PhaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of each pipeline phase.",
		}, []string{"phase"}),
		FetchPapers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "papers_total",
			Help:      "Reference fetches by outcome.",
		}, []string{"outcome"}),
		FetchReferences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "references_total",
			Help:      "Reference events written.",
		}),
	}

	reg.MustRegister(
		m.RecordsProcessed, m.RecordsSkipped, m.PlaceholdersCreated,
		m.GraphNodes, m.GraphPlaceholders, m.GraphEdges, m.GraphDuplicates,
		m.RankIterations, m.RankDelta, m.RankConverged, m.RankDangling,
		m.PhaseDuration, m.FetchPapers, m.FetchReferences,
	)
	return m
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordProcessed counts an accepted input record.
func (m *Metrics) RecordProcessed(kind string) {
	m.RecordsProcessed.WithLabelValues(kind).Inc()
}

// RecordSkipped counts a skipped input record.
func (m *Metrics) RecordSkipped(kind, reason string) {
	m.RecordsSkipped.WithLabelValues(kind, reason).Inc()
}

// RecordPlaceholder counts a node synthesized for the given edge side.
func (m *Metrics) RecordPlaceholder(side string) {
	m.PlaceholdersCreated.WithLabelValues(side).Inc()
}

// ObserveGraph sets the graph gauges from a frozen snapshot.
func (m *Metrics) ObserveGraph(s *graph.Snapshot) {
	st := s.Stats()
	m.GraphNodes.Set(float64(st.Nodes))
	m.GraphPlaceholders.Set(float64(st.Placeholders))
	m.GraphEdges.Set(float64(st.Edges))
	m.GraphDuplicates.Set(float64(len(s.DuplicateArcs())))
}

// ObserveRank sets the rank gauges.
func (m *Metrics) ObserveRank(r *rank.Result) {
	m.RankIterations.Set(float64(r.Iterations))
	m.RankDelta.Set(r.Delta)
	m.RankDangling.Set(float64(r.Dangling))
	if r.Converged {
		m.RankConverged.Set(1)
	} else {
		m.RankConverged.Set(0)
	}
}

// ObservePhase records how long a named phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// ObserveHarvest adds the outcome counts of a fetch run.
func (m *Metrics) ObserveHarvest(st s2.HarvestStats) {
	m.FetchPapers.WithLabelValues("fetched").Add(float64(st.Fetched))
	m.FetchPapers.WithLabelValues("skipped").Add(float64(st.Skipped))
	m.FetchPapers.WithLabelValues("failed").Add(float64(st.Failed))
	m.FetchPapers.WithLabelValues("truncated").Add(float64(st.Truncated))
	m.FetchReferences.Add(float64(st.References))
}

// WriteTextfile writes every metric to path in the text exposition format
// read by the node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
