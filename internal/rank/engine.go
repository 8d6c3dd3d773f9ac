// Package rank computes a citation-biased PageRank over a frozen citation
// graph.
//
// The transition matrix holds A[citing][cited] and is multiplied directly
// against the rank vector, so a paper's score aggregates the scores of the
// papers it cites. Dangling papers contribute a fixed offset of
// DanglingConstant per dangling paper rather than redistributing their
// own mass.
package rank

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/matsen/citegraph/internal/graph"
)

// Solver defaults.
const (
	DefaultDamping          = 0.99
	DefaultMaxIterations    = 100
	DefaultTolerance        = 1e-9
	DefaultDanglingConstant = 1e-9
)

// ErrInvalidOptions is returned for out-of-range solver settings.
var ErrInvalidOptions = errors.New("invalid rank options")

// Options configures the solver.
type Options struct {
	Damping          float64 `yaml:"damping"`
	MaxIterations    int     `yaml:"max_iterations"`
	Tolerance        float64 `yaml:"tolerance"`
	DanglingConstant float64 `yaml:"dangling_constant"`
}

// DefaultOptions returns the standard solver settings.
func DefaultOptions() Options {
	return Options{
		Damping:          DefaultDamping,
		MaxIterations:    DefaultMaxIterations,
		Tolerance:        DefaultTolerance,
		DanglingConstant: DefaultDanglingConstant,
	}
}

// Validate checks that every setting is in range.
func (o Options) Validate() error {
	if !(o.Damping > 0 && o.Damping <= 1) {
		return fmt.Errorf("%w: damping %v must be in (0, 1]", ErrInvalidOptions, o.Damping)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations %d must be positive", ErrInvalidOptions, o.MaxIterations)
	}
	if o.Tolerance < 0 || math.IsNaN(o.Tolerance) {
		return fmt.Errorf("%w: tolerance %v must be non-negative", ErrInvalidOptions, o.Tolerance)
	}
	if o.DanglingConstant < 0 || math.IsNaN(o.DanglingConstant) {
		return fmt.Errorf("%w: dangling constant %v must be non-negative", ErrInvalidOptions, o.DanglingConstant)
	}
	return nil
}

// Result is the output of one solver run.
type Result struct {
	// RunID identifies this run in logs and stored output.
	RunID uuid.UUID

	// Ranks maps paper ID to its score; the top paper scores exactly 1.
	Ranks map[string]float64
	// Scores holds the same values indexed by graph handle.
	Scores []float64

	Iterations int
	Converged  bool
	// Delta is the Euclidean distance between the last two iterates.
	Delta float64
	Min   float64
	Max   float64

	Dangling int
	Elapsed  time.Duration
}

// Engine runs the solver. It holds no per-run state and may be reused.
type Engine struct {
	opts   Options
	logger zerolog.Logger
}

// NewEngine returns an engine with the given settings.
func NewEngine(opts Options, logger zerolog.Logger) *Engine {
	return &Engine{opts: opts, logger: logger}
}

// Rank scores every paper in s. It never modifies s. An empty snapshot
// yields an empty result without iterating.
func (e *Engine) Rank(s *graph.Snapshot) (*Result, error) {
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	n := s.Len()
	res := &Result{RunID: uuid.New(), Ranks: make(map[string]float64, n)}
	log := e.logger.With().Str("run_id", res.RunID.String()).Logger()
	if n == 0 {
		log.Info().Msg("empty graph, nothing to rank")
		return res, nil
	}

	adj := newCSR(n, s.Arcs())
	ranks := initialRanks(s)

	dangling := 0
	for h := 0; h < n; h++ {
		if s.OutDegree(graph.Handle(h)) == 0 {
			dangling++
		}
	}
	res.Dangling = dangling

	log.Info().
		Int("nodes", n).
		Int("edges", s.EdgeCount()).
		Int("nonzero", adj.nnz()).
		Int("dangling", dangling).
		Msg("starting rank iteration")

	d := e.opts.Damping
	danglingContribution := e.opts.DanglingConstant * float64(dangling)
	teleport := (1 - d) / float64(n)

	next := make([]float64, n)
	for iter := 0; iter < e.opts.MaxIterations; iter++ {
		adj.mulVec(next, ranks)
		for i := range next {
			next[i] = d*(next[i]+danglingContribution) + teleport
		}
		if sum := floats.Sum(next); sum > 0 {
			floats.Scale(1/sum, next)
		}

		res.Delta = floats.Distance(next, ranks, 2)
		res.Iterations = iter + 1
		ranks, next = next, ranks

		log.Debug().Int("iteration", iter).Float64("diff", res.Delta).Msg("rank iteration")

		if res.Delta < e.opts.Tolerance {
			res.Converged = true
			break
		}
	}

	if maxRank := floats.Max(ranks); maxRank > 0 {
		for i := range ranks {
			ranks[i] /= maxRank
		}
	}

	res.Scores = ranks
	res.Min = floats.Min(ranks)
	res.Max = floats.Max(ranks)
	for h, p := range s.Nodes() {
		res.Ranks[p.ID] = ranks[h]
	}
	res.Elapsed = time.Since(start)

	log.Info().
		Int("iterations", res.Iterations).
		Bool("converged", res.Converged).
		Float64("delta", res.Delta).
		Float64("min", res.Min).
		Float64("max", res.Max).
		Dur("elapsed", res.Elapsed).
		Msg("rank complete")

	return res, nil
}

// initialRanks biases the start vector by log citation count, normalized
// to sum to one. With no citations anywhere the log ratio is undefined and
// the start vector is uniform.
func initialRanks(s *graph.Snapshot) []float64 {
	n := s.Len()
	maxCitations := 0
	for _, p := range s.Nodes() {
		if p.CitationCount > maxCitations {
			maxCitations = p.CitationCount
		}
	}

	ranks := make([]float64, n)
	if maxCitations == 0 {
		for i := range ranks {
			ranks[i] = 1
		}
	} else {
		denom := math.Log(float64(maxCitations) + 1)
		for i, p := range s.Nodes() {
			ranks[i] = math.Log(float64(p.CitationCount)+1) / denom
		}
	}

	floats.Scale(1/floats.Sum(ranks), ranks)
	return ranks
}
