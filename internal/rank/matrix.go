package rank

import (
	"sort"

	"github.com/matsen/citegraph/internal/graph"
)

// csrMatrix is a square sparse matrix in compressed-row form. Row i holds
// the papers cited by paper i; parallel arcs are summed into one entry.
type csrMatrix struct {
	n      int
	rowPtr []int
	cols   []int
	vals   []float64
}

// newCSR builds the citing->cited weight matrix from arcs.
func newCSR(n int, arcs []graph.Arc) *csrMatrix {
	counts := make([]int, n+1)
	for _, a := range arcs {
		counts[a.From+1]++
	}
	for i := 1; i <= n; i++ {
		counts[i] += counts[i-1]
	}

	raw := make([]int, len(arcs))
	fill := make([]int, n)
	copy(fill, counts[:n])
	for _, a := range arcs {
		raw[fill[a.From]] = int(a.To)
		fill[a.From]++
	}

	m := &csrMatrix{
		n:      n,
		rowPtr: make([]int, n+1),
		cols:   make([]int, 0, len(arcs)),
		vals:   make([]float64, 0, len(arcs)),
	}
	for i := 0; i < n; i++ {
		row := raw[counts[i]:counts[i+1]]
		sort.Ints(row)
		for j, c := range row {
			if j > 0 && c == row[j-1] {
				m.vals[len(m.vals)-1] += 1.0
				continue
			}
			m.cols = append(m.cols, c)
			m.vals = append(m.vals, 1.0)
		}
		m.rowPtr[i+1] = len(m.cols)
	}
	return m
}

// at returns the entry at (i, j).
func (m *csrMatrix) at(i, j int) float64 {
	row := m.cols[m.rowPtr[i]:m.rowPtr[i+1]]
	k := sort.SearchInts(row, j)
	if k < len(row) && row[k] == j {
		return m.vals[m.rowPtr[i]+k]
	}
	return 0
}

// nnz returns the number of stored entries.
func (m *csrMatrix) nnz() int { return len(m.vals) }

// mulVec sets dst = m·x.
func (m *csrMatrix) mulVec(dst, x []float64) {
	for i := 0; i < m.n; i++ {
		var sum float64
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			sum += m.vals[k] * x[m.cols[k]]
		}
		dst[i] = sum
	}
}
