package rank

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matsen/citegraph/internal/graph"
	"github.com/matsen/citegraph/internal/paper"
)

const tolerance = 1e-9

type testPaper struct {
	id        string
	citations int
}

func buildSnapshot(t *testing.T, papers []testPaper, edges [][2]string) *graph.Snapshot {
	t.Helper()
	g := graph.New()
	for _, p := range papers {
		if _, _, err := g.UpsertNode(p.id, &paper.Paper{Title: p.id, CitationCount: p.citations}); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range edges {
		if _, err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	return g.Freeze()
}

func rankOrFail(t *testing.T, s *graph.Snapshot) *Result {
	t.Helper()
	res, err := NewEngine(DefaultOptions(), zerolog.Nop()).Rank(s)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	return res
}

func maxValue(m map[string]float64) float64 {
	max := math.Inf(-1)
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

func TestRank_EmptyGraph(t *testing.T) {
	res := rankOrFail(t, graph.New().Freeze())
	if len(res.Ranks) != 0 {
		t.Errorf("Ranks = %v, want empty", res.Ranks)
	}
	if res.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", res.Iterations)
	}
}

func TestRank_SingleIsolatedNode(t *testing.T) {
	s := buildSnapshot(t, []testPaper{{"X", 5}}, nil)
	res := rankOrFail(t, s)

	if res.Dangling != 1 {
		t.Errorf("Dangling = %d, want 1", res.Dangling)
	}
	if res.Ranks["X"] != 1.0 {
		t.Errorf("rank(X) = %v, want 1.0", res.Ranks["X"])
	}
}

func TestRank_ThreeCycleIsUniform(t *testing.T) {
	s := buildSnapshot(t,
		[]testPaper{{"A", 10}, {"B", 10}, {"C", 10}},
		[][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}},
	)

	init := initialRanks(s)
	for i, v := range init {
		if math.Abs(v-1.0/3) > tolerance {
			t.Errorf("initial rank %d = %v, want 1/3", i, v)
		}
	}

	res := rankOrFail(t, s)
	if res.Dangling != 0 {
		t.Errorf("Dangling = %d, want 0", res.Dangling)
	}
	if !res.Converged {
		t.Error("expected convergence")
	}
	for _, id := range []string{"A", "B", "C"} {
		if math.Abs(res.Ranks[id]-1.0) > tolerance {
			t.Errorf("rank(%s) = %v, want 1.0", id, res.Ranks[id])
		}
	}
}

func TestRank_MaxIsOne(t *testing.T) {
	var papers []testPaper
	for i := 0; i < 30; i++ {
		papers = append(papers, testPaper{fmt.Sprintf("P%d", i), (i * 37) % 101})
	}
	var edges [][2]string
	for i := 0; i < 30; i++ {
		for _, step := range []int{1, 5, 11} {
			if (i+step)%4 == 0 {
				continue
			}
			edges = append(edges, [2]string{fmt.Sprintf("P%d", i), fmt.Sprintf("P%d", (i+step)%30)})
		}
	}

	res := rankOrFail(t, buildSnapshot(t, papers, edges))
	if got := maxValue(res.Ranks); got != 1.0 {
		t.Errorf("max rank = %v, want exactly 1.0", got)
	}
	if res.Max != 1.0 {
		t.Errorf("Result.Max = %v, want 1.0", res.Max)
	}
	for id, v := range res.Ranks {
		if v <= 0 || math.IsNaN(v) {
			t.Errorf("rank(%s) = %v, want positive", id, v)
		}
	}
	if len(res.Ranks) != 30 || len(res.Scores) != 30 {
		t.Errorf("got %d ranks, %d scores, want 30", len(res.Ranks), len(res.Scores))
	}
}

func TestRank_DuplicateEdgesChangeFixedPoint(t *testing.T) {
	papers := []testPaper{{"A", 3}, {"B", 3}}

	once := rankOrFail(t, buildSnapshot(t, papers, [][2]string{{"A", "B"}}))
	twice := rankOrFail(t, buildSnapshot(t, papers, [][2]string{{"A", "B"}, {"A", "B"}}))

	if once.Ranks["A"] != 1.0 || twice.Ranks["A"] != 1.0 {
		t.Fatalf("A should be top ranked in both runs: %v / %v", once.Ranks, twice.Ranks)
	}
	if !(twice.Ranks["B"] < once.Ranks["B"]) {
		t.Errorf("doubling A->B should lower B relative to A: once=%v twice=%v", once.Ranks["B"], twice.Ranks["B"])
	}
}

func TestRank_RankFlowsToCitingPaper(t *testing.T) {
	// A cites B; B is dangling. Multiplying A·r gives A the rank of what it
	// cites, so A ends up on top.
	s := buildSnapshot(t, []testPaper{{"A", 1}, {"B", 100}}, [][2]string{{"A", "B"}})
	res := rankOrFail(t, s)
	if res.Ranks["A"] != 1.0 || res.Ranks["B"] >= 1.0 {
		t.Errorf("ranks = %v, want A on top", res.Ranks)
	}
}

func TestRank_ZeroCitationsEverywhere(t *testing.T) {
	s := buildSnapshot(t,
		[]testPaper{{"A", 0}, {"B", 0}, {"C", 0}},
		[][2]string{{"A", "B"}},
	)

	init := initialRanks(s)
	for i, v := range init {
		if math.Abs(v-1.0/3) > tolerance {
			t.Errorf("initial rank %d = %v, want uniform", i, v)
		}
	}

	res := rankOrFail(t, s)
	for id, v := range res.Ranks {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("rank(%s) = %v", id, v)
		}
	}
	if maxValue(res.Ranks) != 1.0 {
		t.Errorf("max rank = %v", maxValue(res.Ranks))
	}
}

func TestRank_StopsAtIterationCap(t *testing.T) {
	s := buildSnapshot(t,
		[]testPaper{{"A", 1}, {"B", 50}, {"C", 9}},
		[][2]string{{"A", "B"}, {"B", "C"}, {"A", "C"}},
	)
	opts := DefaultOptions()
	opts.MaxIterations = 2
	opts.Tolerance = 0

	res, err := NewEngine(opts, zerolog.Nop()).Rank(s)
	if err != nil {
		t.Fatal(err)
	}
	if res.Iterations != 2 || res.Converged {
		t.Errorf("Iterations = %d, Converged = %v, want 2/false", res.Iterations, res.Converged)
	}
}

func TestRank_DoesNotMutateSnapshot(t *testing.T) {
	s := buildSnapshot(t, []testPaper{{"A", 2}, {"B", 4}}, [][2]string{{"A", "B"}, {"B", "A"}})
	before := append([]graph.Arc(nil), s.Arcs()...)
	rankOrFail(t, s)

	if len(s.Arcs()) != len(before) {
		t.Fatalf("arc count changed")
	}
	for i := range before {
		if s.Arcs()[i] != before[i] {
			t.Errorf("arc %d changed", i)
		}
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero damping", func(o *Options) { o.Damping = 0 }},
		{"damping above one", func(o *Options) { o.Damping = 1.5 }},
		{"zero iterations", func(o *Options) { o.MaxIterations = 0 }},
		{"negative tolerance", func(o *Options) { o.Tolerance = -1 }},
		{"negative dangling constant", func(o *Options) { o.DanglingConstant = -1 }},
	}

	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			if err := opts.Validate(); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Validate() = %v, want ErrInvalidOptions", err)
			}
			if _, err := NewEngine(opts, zerolog.Nop()).Rank(graph.New().Freeze()); err == nil {
				t.Error("Rank() accepted invalid options")
			}
		})
	}
}

func TestResult_Top(t *testing.T) {
	s := buildSnapshot(t, []testPaper{{"A", 1}, {"B", 100}}, [][2]string{{"A", "B"}})
	res := rankOrFail(t, s)

	top := res.Top(s, 1)
	if len(top) != 1 || top[0].ID != "A" || top[0].Rank != 1.0 {
		t.Errorf("Top(1) = %+v", top)
	}
	if all := res.Top(s, 0); len(all) != 2 {
		t.Errorf("Top(0) returned %d entries, want 2", len(all))
	}
}

func TestRank_RunIDPerRun(t *testing.T) {
	s := buildSnapshot(t, []testPaper{{"A", 1}, {"B", 2}}, [][2]string{{"A", "B"}})
	first := rankOrFail(t, s)
	second := rankOrFail(t, s)
	if first.RunID == uuid.Nil || second.RunID == uuid.Nil {
		t.Fatal("run id not set")
	}
	if first.RunID == second.RunID {
		t.Errorf("two runs share run id %s", first.RunID)
	}
}
