// Package storage persists analysis runs in SQLite: one row per run with its report,
// plus the nodes, edges and errors of the analyzed graph.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"archscan/internal/slogutil"
)

// DB represents a database connection with transaction helpers
type DB struct {
	conn     *sql.DB
	logger   *slog.Logger
	dbPath   string
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// Option customizes Open.
type Option func(*DB)

// WithCompression toggles zstd compression of node and report blobs. Reads handle
// both forms regardless.
func WithCompression(on bool) Option {
	return func(db *DB) { db.compress = on }
}

// Open opens or creates the run store at path. A new database gets the full schema; an
// existing one is migrated.
func Open(path string, logger *slog.Logger, opts ...Option) (*DB, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	dbExists := fileExists(path)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas are per connection; a single connection keeps them in force.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	db := &DB{
		conn:     conn,
		logger:   logger,
		dbPath:   path,
		compress: true,
		enc:      enc,
		dec:      dec,
	}
	for _, opt := range opts {
		opt(db)
	}

	if !dbExists {
		logger.Info("Creating new database", "path", path)
		if err := db.initializeSchema(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	} else {
		logger.Debug("Running database migrations", "path", path)
		if err := db.runMigrations(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.dec != nil {
		db.dec.Close()
	}
	if db.enc != nil {
		_ = db.enc.Close()
	}
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.dbPath }

// WithTx executes a function within a transaction
// If the function returns an error, the transaction is rolled back
// Otherwise, the transaction is committed
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback transaction",
				"error", err.Error(),
				"rollback_error", rbErr.Error(),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
