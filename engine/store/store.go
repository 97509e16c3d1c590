// Package store persists graph.Context values to a single SQLite file via
// database/sql and the pure-Go modernc.org/sqlite driver — no CGo, matching
// the single-file, zero-external-service persistence model (section 4.9).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/plexuslabs/plexus/engine/graph"
)

const schema = `
CREATE TABLE IF NOT EXISTS contexts (
	id TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS nodes (
	context_id TEXT NOT NULL,
	id TEXT NOT NULL,
	type TEXT,
	content_type TEXT,
	dimension TEXT,
	content_json TEXT,
	properties_json TEXT,
	PRIMARY KEY (context_id, id)
);
CREATE TABLE IF NOT EXISTS edges (
	context_id TEXT NOT NULL,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	relationship TEXT NOT NULL,
	source_dim TEXT,
	target_dim TEXT,
	contributions_json TEXT,
	raw_weight REAL,
	properties_json TEXT,
	PRIMARY KEY (context_id, source, target, relationship)
);
`

// SQLiteStore implements graph.Store against a single SQLite file. DBPath
// may be ":memory:" for ephemeral use (tests, one-shot tooling).
type SQLiteStore struct {
	db *sql.DB
}

// Open creates/opens the database at dbPath and ensures the schema exists.
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", dbPath, err)
	}
	// SQLite only tolerates one writer at a time; the Engine already
	// serializes writes per context, but multiple contexts can write
	// concurrently, so cap the pool to avoid "database is locked" races.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveContext replaces the persisted rows for g.ID() with its current
// in-memory state, inside a single transaction.
func (s *SQLiteStore) SaveContext(ctx context.Context, g *graph.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	id := g.ID()
	if _, err := tx.ExecContext(ctx, `INSERT INTO contexts (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, id); err != nil {
		return fmt.Errorf("store: upsert context %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE context_id = ?`, id); err != nil {
		return fmt.Errorf("store: clear nodes %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE context_id = ?`, id); err != nil {
		return fmt.Errorf("store: clear edges %q: %w", id, err)
	}

	snap := g.Snapshot()

	for _, n := range snap.Nodes() {
		contentJSON, err := json.Marshal(n.Content)
		if err != nil {
			return fmt.Errorf("store: marshal content of node %q: %w", n.ID, err)
		}
		propsJSON, err := json.Marshal(n.Properties)
		if err != nil {
			return fmt.Errorf("store: marshal properties of node %q: %w", n.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nodes (context_id, id, type, content_type, dimension, content_json, properties_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, n.ID, n.Type, string(n.ContentType), string(n.Dimension), string(contentJSON), string(propsJSON))
		if err != nil {
			return fmt.Errorf("store: insert node %q: %w", n.ID, err)
		}
	}

	for _, e := range snap.Edges() {
		contribJSON, err := json.Marshal(e.Contributions)
		if err != nil {
			return fmt.Errorf("store: marshal contributions of edge %q->%q: %w", e.Source, e.Target, err)
		}
		propsJSON, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("store: marshal properties of edge %q->%q: %w", e.Source, e.Target, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO edges (context_id, source, target, relationship, source_dim, target_dim, contributions_json, raw_weight, properties_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, e.Source, e.Target, e.Relationship, string(e.SourceDim), string(e.TargetDim),
			string(contribJSON), e.RawWeight, string(propsJSON))
		if err != nil {
			return fmt.Errorf("store: insert edge %q->%q: %w", e.Source, e.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %q: %w", id, err)
	}
	return nil
}

// LoadContext rebuilds a graph.Context from persisted rows.
func (s *SQLiteStore) LoadContext(ctx context.Context, id string) (*graph.Context, error) {
	var exists string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM contexts WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: context %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup context %q: %w", id, err)
	}

	nodeRows, err := s.db.QueryContext(ctx, `
		SELECT id, type, content_type, dimension, content_json, properties_json FROM nodes WHERE context_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("store: query nodes %q: %w", id, err)
	}
	defer nodeRows.Close()

	var nodes []graph.Node
	for nodeRows.Next() {
		var n graph.Node
		var contentType, dimension, contentJSON, propsJSON string
		if err := nodeRows.Scan(&n.ID, &n.Type, &contentType, &dimension, &contentJSON, &propsJSON); err != nil {
			return nil, fmt.Errorf("store: scan node: %w", err)
		}
		n.ContentType = graph.ContentType(contentType)
		n.Dimension = graph.Dimension(dimension)
		if contentJSON != "" && contentJSON != "null" {
			if err := json.Unmarshal([]byte(contentJSON), &n.Content); err != nil {
				return nil, fmt.Errorf("store: unmarshal content of node %q: %w", n.ID, err)
			}
		}
		if propsJSON != "" {
			props := graph.Properties{}
			if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
				return nil, fmt.Errorf("store: unmarshal properties of node %q: %w", n.ID, err)
			}
			n.Properties = props
		}
		nodes = append(nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate nodes %q: %w", id, err)
	}

	edgeRows, err := s.db.QueryContext(ctx, `
		SELECT source, target, relationship, source_dim, target_dim, contributions_json, raw_weight, properties_json
		FROM edges WHERE context_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("store: query edges %q: %w", id, err)
	}
	defer edgeRows.Close()

	var edges []graph.Edge
	for edgeRows.Next() {
		var e graph.Edge
		var sourceDim, targetDim, contribJSON, propsJSON string
		if err := edgeRows.Scan(&e.Source, &e.Target, &e.Relationship, &sourceDim, &targetDim, &contribJSON, &e.RawWeight, &propsJSON); err != nil {
			return nil, fmt.Errorf("store: scan edge: %w", err)
		}
		e.SourceDim = graph.Dimension(sourceDim)
		e.TargetDim = graph.Dimension(targetDim)
		contribs := map[string]float64{}
		if contribJSON != "" {
			if err := json.Unmarshal([]byte(contribJSON), &contribs); err != nil {
				return nil, fmt.Errorf("store: unmarshal contributions of edge %q->%q: %w", e.Source, e.Target, err)
			}
		}
		e.Contributions = contribs
		if propsJSON != "" {
			props := graph.Properties{}
			if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
				return nil, fmt.Errorf("store: unmarshal properties of edge %q->%q: %w", e.Source, e.Target, err)
			}
			e.Properties = props
		}
		edges = append(edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate edges %q: %w", id, err)
	}

	g := graph.NewContext(id)
	g.RestoreSnapshot(nodes, edges)
	return g, nil
}

// ListContexts returns every persisted context ID.
func (s *SQLiteStore) ListContexts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM contexts`)
	if err != nil {
		return nil, fmt.Errorf("store: list contexts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan context id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteContext removes a context and its nodes/edges.
func (s *SQLiteStore) DeleteContext(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE context_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete edges %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE context_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete nodes %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM contexts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete context %q: %w", id, err)
	}
	return tx.Commit()
}

// RenameContext changes a context's primary key across all three tables.
func (s *SQLiteStore) RenameContext(ctx context.Context, id, newID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE contexts SET id = ? WHERE id = ?`, newID, id); err != nil {
		return fmt.Errorf("store: rename context %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE nodes SET context_id = ? WHERE context_id = ?`, newID, id); err != nil {
		return fmt.Errorf("store: rename nodes of %q: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE edges SET context_id = ? WHERE context_id = ?`, newID, id); err != nil {
		return fmt.Errorf("store: rename edges of %q: %w", id, err)
	}
	return tx.Commit()
}
