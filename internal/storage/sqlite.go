// Package storage persists a ranked citation graph to SQLite and answers
// queries over it.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matsen/citegraph/internal/graph"
	"github.com/matsen/citegraph/internal/paper"
	"github.com/matsen/citegraph/internal/rank"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// RankedPaper is one row of the nodes table.
type RankedPaper struct {
	paper.Paper
	Rank float64 `json:"rank"`
}

// RunInfo describes the build that produced the database.
type RunInfo struct {
	RunID         string    `json:"run_id,omitempty"`
	Nodes         int       `json:"nodes"`
	Edges         int       `json:"edges"`
	SelfCitations int       `json:"self_citations"`
	Iterations    int       `json:"iterations"`
	Converged     bool      `json:"converged"`
	Delta         float64   `json:"delta"`
	BuiltAt       time.Time `json:"built_at"`
}

const selectNodeFields = `id, label, year, citation_count, url, page_rank, abstract, placeholder`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			year INTEGER NOT NULL,
			citation_count INTEGER NOT NULL,
			url TEXT,
			page_rank REAL NOT NULL,
			abstract TEXT,
			placeholder INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_rank ON nodes(page_rank DESC);

		-- Title search
		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(id, label);

		-- Parallel citations are kept as separate rows
		CREATE TABLE IF NOT EXISTS paper_edges (
			seq INTEGER PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_paper_edges_source ON paper_edges(source_id);
		CREATE INDEX IF NOT EXISTS idx_paper_edges_target ON paper_edges(target_id);

		CREATE TABLE IF NOT EXISTS run_info (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// StoreGraph replaces the database contents with the snapshot and its
// ranks. A nil result stores every rank as 0.
func (d *DB) StoreGraph(ctx context.Context, s *graph.Snapshot, r *rank.Result) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "nodes_fts", "paper_edges", "run_info"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (`+selectNodeFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing nodes insert: %w", err)
	}
	defer nodeStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes_fts (id, label) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for h, p := range s.Nodes() {
		score := 0.0
		if r != nil && h < len(r.Scores) {
			score = r.Scores[h]
		}
		label := p.Label()
		if _, err := nodeStmt.ExecContext(ctx,
			p.ID, label, p.Year, p.CitationCount,
			nullableStringValue(p.URL), score, nullableStringValue(p.Abstract), p.Placeholder,
		); err != nil {
			return fmt.Errorf("inserting node %s: %w", p.ID, err)
		}
		if _, err := ftsStmt.ExecContext(ctx, p.ID, label); err != nil {
			return fmt.Errorf("inserting fts for %s: %w", p.ID, err)
		}
	}

	selfCitations, err := insertEdges(ctx, tx, s)
	if err != nil {
		return err
	}

	info := map[string]string{
		"nodes":          strconv.Itoa(s.Len()),
		"edges":          strconv.Itoa(s.EdgeCount()),
		"self_citations": strconv.Itoa(selfCitations),
		"built_at":       time.Now().UTC().Format(time.RFC3339),
	}
	if r != nil {
		info["run_id"] = r.RunID.String()
		info["iterations"] = strconv.Itoa(r.Iterations)
		info["converged"] = strconv.FormatBool(r.Converged)
		info["delta"] = strconv.FormatFloat(r.Delta, 'g', -1, 64)
	}
	for k, v := range info {
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_info (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("inserting run info %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// GetNode retrieves a node by ID. It returns nil if the ID is unknown.
func (d *DB) GetNode(id string) (*RankedPaper, error) {
	row := d.db.QueryRow(`SELECT `+selectNodeFields+` FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

// TopRanked returns the n highest-ranked nodes, ties broken by ID.
func (d *DB) TopRanked(n int) ([]RankedPaper, error) {
	rows, err := d.db.Query(`
		SELECT `+selectNodeFields+`
		FROM nodes
		ORDER BY page_rank DESC, id
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("querying top ranked: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// Search finds nodes whose title matches query, best ranked first.
func (d *DB) Search(query string, limit int) ([]RankedPaper, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := d.db.Query(`
		SELECT `+selectNodeFields+`
		FROM nodes
		WHERE id IN (SELECT id FROM nodes_fts WHERE nodes_fts MATCH ?)
		ORDER BY page_rank DESC, id
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// CountNodes returns the total number of nodes.
func (d *DB) CountNodes() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count)
	return count, err
}

// GetRunInfo returns the build summary stored with the graph.
func (d *DB) GetRunInfo() (RunInfo, error) {
	rows, err := d.db.Query(`SELECT key, value FROM run_info`)
	if err != nil {
		return RunInfo{}, fmt.Errorf("querying run info: %w", err)
	}
	defer rows.Close()

	var info RunInfo
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return RunInfo{}, err
		}
		switch k {
		case "run_id":
			info.RunID = v
		case "nodes":
			info.Nodes, _ = strconv.Atoi(v)
		case "edges":
			info.Edges, _ = strconv.Atoi(v)
		case "self_citations":
			info.SelfCitations, _ = strconv.Atoi(v)
		case "iterations":
			info.Iterations, _ = strconv.Atoi(v)
		case "converged":
			info.Converged, _ = strconv.ParseBool(v)
		case "delta":
			info.Delta, _ = strconv.ParseFloat(v, 64)
		case "built_at":
			info.BuiltAt, _ = time.Parse(time.RFC3339, v)
		}
	}
	return info, rows.Err()
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(s scanner) (*RankedPaper, error) {
	var n RankedPaper
	var url, abstract sql.NullString

	err := s.Scan(
		&n.ID, &n.Title, &n.Year, &n.CitationCount,
		&url, &n.Rank, &abstract, &n.Placeholder,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.URL = url.String
	n.Abstract = abstract.String
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]RankedPaper, error) {
	var nodes []RankedPaper
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, *n)
		}
	}
	return nodes, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// FTS5 uses double quotes for phrase matching
	if strings.ContainsAny(query, "\"*+-:(){}[]^~") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
