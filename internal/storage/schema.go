package storage

import (
	"context"
	"database/sql"
	"errors"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, create := range []func(*sql.Tx) error{
			createSchemaVersionTable,
			createRunsTable,
			createNodesTable,
			createEdgesTable,
			createNodeErrorsTable,
		} {
			if err := create(tx); err != nil {
				return err
			}
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}
		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}
	if version == 0 {
		// An empty file left by an interrupted first open.
		return db.initializeSchema()
	}
	if version > currentSchemaVersion {
		return errors.New("database was written by a newer archscan")
	}
	db.logger.Info("Running database migrations", "from_version", version, "to_version", currentSchemaVersion)
	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createRunsTable creates the runs table. The report column holds the JSON report,
// zstd-compressed when compressed = 1.
func createRunsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			root TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			converged INTEGER NOT NULL,
			node_count INTEGER NOT NULL,
			edge_count INTEGER NOT NULL,
			error_count INTEGER NOT NULL,
			warning_count INTEGER NOT NULL,
			report BLOB NOT NULL,
			compressed INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`)
	return err
}

func createNodesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS nodes (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			node_id TEXT NOT NULL,
			node_type TEXT NOT NULL,
			name TEXT NOT NULL,
			tags TEXT NOT NULL,
			data BLOB NOT NULL,
			compressed INTEGER NOT NULL DEFAULT 0,
			ordinal INTEGER NOT NULL,
			PRIMARY KEY (run_id, node_id)
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(run_id, node_type)`)
	return err
}

func createEdgesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS edges (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			edge_type TEXT NOT NULL,
			origin TEXT NOT NULL DEFAULT '',
			ordinal INTEGER NOT NULL,
			PRIMARY KEY (run_id, source, target, edge_type)
		)
	`)
	return err
}

func createNodeErrorsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS node_errors (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			node_id TEXT NOT NULL,
			inspector TEXT NOT NULL,
			code TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_node_errors_run ON node_errors(run_id, node_id)`)
	return err
}
