package vectorindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SQLiteStore is a local vector database holding any number of named
// indexes in one file. Use Index to get a handle for one of them.
type SQLiteStore struct {
	db *sql.DB

	// vectorSQL is set when vec_distance_cosine is callable on db
	vectorSQL bool
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db, vectorSQL: vectorExtensionLoaded(db)}, nil
}

// vectorExtensionLoaded reports whether sqlite-vec is loaded on db. Builds
// without the extension, or where registration failed, rank in Go.
func vectorExtensionLoaded(db *sql.DB) bool {
	if !VectorExtensionAvailable {
		return false
	}
	var version string
	return db.QueryRow("SELECT vec_version()").Scan(&version) == nil
}

// Index returns a handle for the named index. The index row is created on
// first use.
func (s *SQLiteStore) Index(spec Spec) (*SQLiteIndex, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec.Metric = spec.metric()
	if spec.Metric != MetricCosine {
		return nil, fmt.Errorf("%w: %s (local indexes support %s only)", ErrUnsupportedMetric, spec.Metric, MetricCosine)
	}
	return &SQLiteIndex{store: s, spec: spec}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteIndex is one named index inside a SQLiteStore
type SQLiteIndex struct {
	store *SQLiteStore
	spec  Spec

	mu      sync.Mutex
	ensured bool
}

// Ensure creates the index row when missing. An existing index with a
// different dimension is an error.
func (x *SQLiteIndex) Ensure(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.ensured {
		return nil
	}
	if err := ensureIndexWithQuerier(ctx, x.store.db, x.spec); err != nil {
		return err
	}
	x.ensured = true
	return nil
}

func ensureIndexWithQuerier(ctx context.Context, q querier, spec Spec) error {
	var dimension int
	var metric string
	err := q.QueryRowContext(ctx,
		`SELECT dimension, metric FROM indexes WHERE name = ?`, spec.Name).Scan(&dimension, &metric)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = q.ExecContext(ctx,
			`INSERT INTO indexes (name, dimension, metric, created_at) VALUES (?, ?, ?, ?)`,
			spec.Name, spec.Dimension, spec.Metric, time.Now())
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", spec.Name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to describe index %s: %w", spec.Name, err)
	}

	if dimension != spec.Dimension {
		return fmt.Errorf("%w: index %s has dimension %d, configured %d",
			ErrDimensionMismatch, spec.Name, dimension, spec.Dimension)
	}
	if metric != spec.Metric {
		return fmt.Errorf("%w: index %s uses %s", ErrUnsupportedMetric, spec.Name, metric)
	}
	return nil
}

// Upsert inserts or replaces vectors in one transaction
func (x *SQLiteIndex) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := x.Ensure(ctx); err != nil {
		return err
	}

	for _, v := range vectors {
		if len(v.Values) != x.spec.Dimension {
			return fmt.Errorf("%w: vector %q has %d values, index %s expects %d",
				ErrDimensionMismatch, v.ID, len(v.Values), x.spec.Name, x.spec.Dimension)
		}
	}

	tx, err := x.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertVectorsWithQuerier(ctx, tx, x.spec.Name, vectors); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertVectorsWithQuerier(ctx context.Context, q querier, index string, vectors []Vector) error {
	query := `
		INSERT INTO vectors (index_name, id, vector, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(index_name, id) DO UPDATE SET
			vector = excluded.vector,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	for _, v := range vectors {
		metadata, err := encodeMetadata(v.Metadata)
		if err != nil {
			return fmt.Errorf("vector %q: %w", v.ID, err)
		}
		if _, err := q.ExecContext(ctx, query, index, v.ID, serializeVector(v.Values), metadata, now); err != nil {
			return fmt.Errorf("failed to upsert vector %q: %w", v.ID, err)
		}
	}
	return nil
}

// Query returns the TopK most similar vectors
func (x *SQLiteIndex) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	if err := x.Ensure(ctx); err != nil {
		return nil, err
	}
	if len(req.Vector) != x.spec.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, index %s expects %d",
			ErrDimensionMismatch, len(req.Vector), x.spec.Name, x.spec.Dimension)
	}

	matches, err := searchVector(ctx, x.store.db, x.store.vectorSQL, x.spec.Name, req.Vector, req.TopK)
	if err != nil {
		return nil, err
	}
	if !req.IncludeMetadata {
		for i := range matches {
			matches[i].Metadata = nil
		}
	}
	return matches, nil
}

// Count returns the number of vectors stored in the index
func (x *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := x.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vectors WHERE index_name = ?`, x.spec.Name).Scan(&n)
	return n, err
}

// Name returns the index name
func (x *SQLiteIndex) Name() string {
	return x.spec.Name
}

// Close is a no-op; the owning SQLiteStore holds the connection
func (x *SQLiteIndex) Close() error {
	return nil
}
