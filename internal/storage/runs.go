package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"archscan/internal/engine"
	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/inspector"
)

// RunRecord is the summary row of a stored run.
type RunRecord struct {
	RunID      string    `json:"runId"`
	Root       string    `json:"root"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Converged  bool      `json:"converged"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
	Errors     int       `json:"errors"`
	Warnings   int       `json:"warnings"`
}

// NodeRecord is a stored node with its final annotation state.
type NodeRecord struct {
	ID         string                `json:"id"`
	Type       graph.NodeType        `json:"type"`
	Name       string                `json:"name"`
	Tags       []string              `json:"tags"`
	Properties map[string]any        `json:"properties"`
	Metrics    map[string]float64    `json:"metrics"`
	Errors     []graph.AnalysisError `json:"errors,omitempty"`
}

// EdgeRecord is a stored edge. Origin is empty for discovery edges.
type EdgeRecord struct {
	graph.Edge
	Origin string `json:"origin,omitempty"`
}

// StoredReport is a report as read back from the store.
type StoredReport struct {
	*engine.Report
	Invocations map[inspector.Identity]int `json:"invocations"`
}

type nodeData struct {
	Properties map[string]any     `json:"properties"`
	Metrics    map[string]float64 `json:"metrics"`
}

// edgeOrigins is implemented by graphs that remember which inspector created an edge.
type edgeOrigins interface {
	EdgeOrigin(e graph.Edge) string
}

// SaveRun stores the final state of snap together with the report of the run that
// produced it.
func (db *DB) SaveRun(ctx context.Context, root string, snap graph.Snapshot, rep *engine.Report) (*RunRecord, error) {
	nodes := snap.AllNodes()
	edges := snap.Edges(graph.EdgeFilter{})

	rec := &RunRecord{
		RunID:      rep.RunID,
		Root:       root,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Converged:  rep.Converged(),
		Nodes:      len(nodes),
		Edges:      len(edges),
		Errors:     len(rep.Errors),
		Warnings:   len(rep.Warnings),
	}

	report, compressed, err := db.encodeBlob(StoredReport{Report: rep, Invocations: rep.InvocationCounts()})
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.StorageError, "encode report", err)
	}

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO runs (run_id, root, started_at, finished_at, converged, node_count,
				edge_count, error_count, warning_count, report, compressed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.Root, formatTime(rec.StartedAt), formatTime(rec.FinishedAt), rec.Converged,
			rec.Nodes, rec.Edges, rec.Errors, rec.Warnings, report, compressed,
		); err != nil {
			return err
		}
		if err := db.insertNodes(ctx, tx, rec.RunID, nodes); err != nil {
			return err
		}
		return insertEdges(ctx, tx, rec.RunID, snap, edges)
	})
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.StorageError, "save run "+rec.RunID, err)
	}

	db.logger.Info("Run stored", "run", rec.RunID, "nodes", rec.Nodes, "edges", rec.Edges, "compressed", compressed)
	return rec, nil
}

func (db *DB) insertNodes(ctx context.Context, tx *sql.Tx, runID string, nodes []*graph.Node) error {
	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (run_id, node_id, node_type, name, tags, data, compressed, ordinal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = nodeStmt.Close() }()

	errStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO node_errors (run_id, node_id, inspector, code, message)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = errStmt.Close() }()

	for i, n := range nodes {
		tags, err := json.Marshal(n.Tags())
		if err != nil {
			return err
		}
		data, compressed, err := db.encodeBlob(nodeData{Properties: n.Properties(), Metrics: n.Metrics()})
		if err != nil {
			return fmt.Errorf("encode node %s: %w", n.ID(), err)
		}
		if _, err := nodeStmt.ExecContext(ctx, runID, n.ID(), n.Type().String(), n.Name(), string(tags), data, compressed, i); err != nil {
			return err
		}
		for _, e := range n.Errors() {
			if _, err := errStmt.ExecContext(ctx, runID, n.ID(), e.Inspector, e.Code, e.Message); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, runID string, snap graph.Snapshot, edges []graph.Edge) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (run_id, source, target, edge_type, origin, ordinal)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	origins, _ := snap.(edgeOrigins)
	for i, e := range edges {
		origin := ""
		if origins != nil {
			origin = origins.EdgeOrigin(e)
		}
		if _, err := stmt.ExecContext(ctx, runID, e.Source, e.Target, e.Type, origin, i); err != nil {
			return err
		}
	}
	return nil
}

// ListRuns returns stored runs, newest first. limit <= 0 returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT run_id, root, started_at, finished_at, converged, node_count, edge_count,
			error_count, warning_count
		FROM runs ORDER BY started_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.StorageError, "list runs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, scanerrors.Wrap(scanerrors.StorageError, "list runs", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetRun returns the summary and report of one run.
func (db *DB) GetRun(ctx context.Context, runID string) (*RunRecord, *StoredReport, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT run_id, root, started_at, finished_at, converged, node_count, edge_count,
			error_count, warning_count, report, compressed
		FROM runs WHERE run_id = ?`, runID)

	var (
		rec        RunRecord
		started    string
		finished   string
		report     []byte
		compressed bool
	)
	err := row.Scan(&rec.RunID, &rec.Root, &started, &finished, &rec.Converged, &rec.Nodes,
		&rec.Edges, &rec.Errors, &rec.Warnings, &report, &compressed)
	if err == sql.ErrNoRows {
		return nil, nil, scanerrors.Newf(scanerrors.StorageError, "run %q not found", runID)
	}
	if err != nil {
		return nil, nil, scanerrors.Wrap(scanerrors.StorageError, "get run", err)
	}
	if rec.StartedAt, err = parseTime(started); err != nil {
		return nil, nil, err
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return nil, nil, err
	}

	stored := &StoredReport{}
	if err := db.decodeBlob(report, compressed, stored); err != nil {
		return nil, nil, scanerrors.Wrap(scanerrors.StorageError, "decode report", err)
	}
	return &rec, stored, nil
}

// LatestRun returns the most recent run, or nil when the store is empty.
func (db *DB) LatestRun(ctx context.Context) (*RunRecord, error) {
	runs, err := db.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// LoadNodes returns the nodes of a run in their original order, optionally restricted
// to some node types.
func (db *DB) LoadNodes(ctx context.Context, runID string, types ...graph.NodeType) ([]NodeRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT node_id, node_type, name, tags, data, compressed
		FROM nodes WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.StorageError, "load nodes", err)
	}
	defer func() { _ = rows.Close() }()

	want := make(map[graph.NodeType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	var out []NodeRecord
	for rows.Next() {
		var (
			rec        NodeRecord
			nodeType   string
			tags       string
			data       []byte
			compressed bool
		)
		if err := rows.Scan(&rec.ID, &nodeType, &rec.Name, &tags, &data, &compressed); err != nil {
			return nil, scanerrors.Wrap(scanerrors.StorageError, "load nodes", err)
		}
		if rec.Type, err = graph.ParseNodeType(nodeType); err != nil {
			return nil, scanerrors.Wrap(scanerrors.StorageError, "load nodes", err)
		}
		if len(want) > 0 && !want[rec.Type] {
			continue
		}
		if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
			return nil, scanerrors.Wrap(scanerrors.StorageError, "decode tags of "+rec.ID, err)
		}
		var nd nodeData
		if err := db.decodeBlob(data, compressed, &nd); err != nil {
			return nil, scanerrors.Wrap(scanerrors.StorageError, "decode node "+rec.ID, err)
		}
		rec.Properties, rec.Metrics = nd.Properties, nd.Metrics
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, db.attachErrors(ctx, runID, out)
}

func (db *DB) attachErrors(ctx context.Context, runID string, nodes []NodeRecord) error {
	idx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		idx[n.ID] = i
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT node_id, inspector, code, message FROM node_errors
		WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return scanerrors.Wrap(scanerrors.StorageError, "load node errors", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var nodeID string
		var e graph.AnalysisError
		if err := rows.Scan(&nodeID, &e.Inspector, &e.Code, &e.Message); err != nil {
			return err
		}
		if i, ok := idx[nodeID]; ok {
			nodes[i].Errors = append(nodes[i].Errors, e)
		}
	}
	return rows.Err()
}

// LoadEdges returns the edges of a run in creation order.
func (db *DB) LoadEdges(ctx context.Context, runID string) ([]EdgeRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT source, target, edge_type, origin FROM edges
		WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.StorageError, "load edges", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EdgeRecord
	for rows.Next() {
		var e EdgeRecord
		if err := rows.Scan(&e.Source, &e.Target, &e.Type, &e.Origin); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything stored with it.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"node_errors", "edges", "nodes", "runs"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", runID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Prune keeps the newest keep runs and deletes the rest. It returns how many runs were
// removed.
func (db *DB) Prune(ctx context.Context, keep int) (int, error) {
	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	removed := 0
	for i := keep; i < len(runs); i++ {
		if err := db.DeleteRun(ctx, runs[i].RunID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		db.logger.Info("Pruned runs", "removed", removed, "kept", keep)
	}
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var started, finished string
	if err := row.Scan(&rec.RunID, &rec.Root, &started, &finished, &rec.Converged, &rec.Nodes,
		&rec.Edges, &rec.Errors, &rec.Warnings); err != nil {
		return nil, err
	}
	var err error
	if rec.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	return &rec, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }
