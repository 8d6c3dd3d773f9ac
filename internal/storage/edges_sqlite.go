package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matsen/citegraph/internal/edge"
	"github.com/matsen/citegraph/internal/graph"
)

// insertEdges writes every citation, duplicates included, and returns how
// many were self-citations.
func insertEdges(ctx context.Context, tx *sql.Tx, s *graph.Snapshot) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO paper_edges (source_id, target_id)
		VALUES (?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing edges insert: %w", err)
	}
	defer stmt.Close()

	self := 0
	for _, c := range s.Citations() {
		if c.IsSelfCitation() {
			self++
		}
		if _, err := stmt.ExecContext(ctx, c.CitingID, c.CitedID); err != nil {
			return 0, fmt.Errorf("inserting edge %s -> %s: %w", c.CitingID, c.CitedID, err)
		}
	}
	return self, nil
}

// GetEdgesBySource returns the citations made by the given paper, one
// entry per recorded citation.
func (d *DB) GetEdgesBySource(sourceID string) ([]edge.Citation, error) {
	rows, err := d.db.Query(`
		SELECT source_id, target_id
		FROM paper_edges
		WHERE source_id = ?
		ORDER BY target_id, seq
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying edges by source: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// GetEdgesByTarget returns the citations received by the given paper.
func (d *DB) GetEdgesByTarget(targetID string) ([]edge.Citation, error) {
	rows, err := d.db.Query(`
		SELECT source_id, target_id
		FROM paper_edges
		WHERE target_id = ?
		ORDER BY source_id, seq
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("querying edges by target: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// DuplicateEdge is a citing/cited pair recorded more than once.
type DuplicateEdge struct {
	edge.Citation
	Count int `json:"count"`
}

// GetDuplicateEdges lists pairs with more than one recorded citation,
// most repeated first.
func (d *DB) GetDuplicateEdges(limit int) ([]DuplicateEdge, error) {
	rows, err := d.db.Query(`
		SELECT source_id, target_id, COUNT(*) AS n
		FROM paper_edges
		GROUP BY source_id, target_id
		HAVING n > 1
		ORDER BY n DESC, source_id, target_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying duplicate edges: %w", err)
	}
	defer rows.Close()

	var dups []DuplicateEdge
	for rows.Next() {
		var dup DuplicateEdge
		if err := rows.Scan(&dup.CitingID, &dup.CitedID, &dup.Count); err != nil {
			return nil, err
		}
		dups = append(dups, dup)
	}
	return dups, rows.Err()
}

// CountEdges returns the total number of edges.
func (d *DB) CountEdges() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM paper_edges").Scan(&count)
	return count, err
}

func scanEdges(rows *sql.Rows) ([]edge.Citation, error) {
	var edges []edge.Citation
	for rows.Next() {
		var c edge.Citation
		if err := rows.Scan(&c.CitingID, &c.CitedID); err != nil {
			return nil, err
		}
		edges = append(edges, c)
	}
	return edges, rows.Err()
}
