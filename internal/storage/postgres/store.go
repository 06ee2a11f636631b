// Package postgres implements the storage interfaces on PostgreSQL for
// shared deployments. The embedding cache keeps both a BYTEA column and,
// when the pgvector extension is available, a vector column for
// cosine-distance queries from other tooling.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/intentgap/internal/storage"
	"github.com/scrypster/intentgap/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	cluster_id INTEGER NOT NULL,
	action TEXT NOT NULL,
	intent_name TEXT NOT NULL,
	merge_target TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL,
	cohesion DOUBLE PRECISION NOT NULL,
	distinctiveness DOUBLE PRECISION NOT NULL,
	cluster_support INTEGER NOT NULL,
	reasoning TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_log(run_id);

CREATE TABLE IF NOT EXISTS taxonomy_versions (
	version INTEGER PRIMARY KEY,
	entries JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS embedding_cache (
	cache_key TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	dimension INTEGER NOT NULL,
	vector BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Store implements storage.Store using PostgreSQL.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

var _ storage.Store = (*Store)(nil)

// Open connects to PostgreSQL with the given DSN and applies the schema.
// It probes for the pgvector extension; when present, a vector column is
// added to the embedding cache.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	s := &Store{db: db}
	s.pgvectorAvailable = s.probePgvector()
	return s, nil
}

// probePgvector checks for the pgvector extension and, when present, ensures
// the embedding_vec column exists. Failures degrade to BYTEA-only storage.
func (s *Store) probePgvector() bool {
	var installed bool
	err := s.db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&installed)
	if err != nil || !installed {
		return false
	}

	if _, err := s.db.Exec(
		`ALTER TABLE embedding_cache ADD COLUMN IF NOT EXISTS embedding_vec vector`); err != nil {
		log.Printf("postgres: pgvector present but column setup failed, using BYTEA only: %v", err)
		return false
	}
	return true
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one audit record.
func (s *Store) Append(ctx context.Context, rec *types.AuditRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: audit record ID is required", storage.ErrInvalidInput)
	}
	if rec.RunID == "" {
		return fmt.Errorf("%w: run ID is required", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO audit_log (id, run_id, timestamp, cluster_id, action, intent_name,
			merge_target, confidence, cohesion, distinctiveness, cluster_support, reasoning)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RunID, rec.Timestamp, rec.ClusterID, string(rec.Action), rec.IntentName,
		rec.MergeTarget, rec.Confidence, rec.Cohesion, rec.Distinctiveness, rec.ClusterSupport, rec.Reasoning)
	if err != nil {
		return fmt.Errorf("postgres: failed to append audit record: %w", err)
	}
	return nil
}

// ListByRun returns all audit records for a run, ordered by cluster ID.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]*types.AuditRecord, error) {
	query := `
		SELECT id, run_id, timestamp, cluster_id, action, intent_name,
			merge_target, confidence, cohesion, distinctiveness, cluster_support, reasoning
		FROM audit_log
		WHERE run_id = $1
		ORDER BY cluster_id
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []*types.AuditRecord
	for rows.Next() {
		rec := &types.AuditRecord{}
		var action string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Timestamp, &rec.ClusterID, &action, &rec.IntentName,
			&rec.MergeTarget, &rec.Confidence, &rec.Cohesion, &rec.Distinctiveness, &rec.ClusterSupport, &rec.Reasoning); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan audit record: %w", err)
		}
		rec.Action = types.ProposalAction(action)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Runs returns distinct run IDs, newest first.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM audit_log GROUP BY run_id ORDER BY MAX(timestamp) DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan run ID: %w", err)
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

// Save stores a taxonomy snapshot. The version must advance monotonically.
func (s *Store) Save(ctx context.Context, tax *types.Taxonomy) error {
	if tax == nil || tax.Version <= 0 {
		return fmt.Errorf("%w: taxonomy version must be positive", storage.ErrInvalidInput)
	}

	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM taxonomy_versions`).Scan(&latest); err != nil {
		return fmt.Errorf("postgres: failed to read latest taxonomy version: %w", err)
	}
	if latest.Valid && tax.Version <= int(latest.Int64) {
		return fmt.Errorf("%w: taxonomy version %d is not greater than latest %d",
			storage.ErrInvalidInput, tax.Version, latest.Int64)
	}

	entries, err := json.Marshal(tax.Entries)
	if err != nil {
		return fmt.Errorf("postgres: failed to serialize taxonomy: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO taxonomy_versions (version, entries) VALUES ($1, $2)`,
		tax.Version, entries); err != nil {
		return fmt.Errorf("postgres: failed to save taxonomy: %w", err)
	}
	return nil
}

// Load retrieves the latest taxonomy snapshot.
func (s *Store) Load(ctx context.Context) (*types.Taxonomy, error) {
	var version int
	var entriesJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT version, entries FROM taxonomy_versions ORDER BY version DESC LIMIT 1`).
		Scan(&version, &entriesJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to load taxonomy: %w", err)
	}

	tax := &types.Taxonomy{Version: version}
	if err := json.Unmarshal(entriesJSON, &tax.Entries); err != nil {
		return nil, fmt.Errorf("postgres: failed to deserialize taxonomy: %w", err)
	}
	return tax, nil
}

// Get retrieves a cached embedding by key.
func (s *Store) Get(ctx context.Context, key string) (types.Vector, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: cache key is required", storage.ErrInvalidInput)
	}

	var buf []byte
	var dimension int
	err := s.db.QueryRowContext(ctx,
		`SELECT vector, dimension FROM embedding_cache WHERE cache_key = $1`, key).
		Scan(&buf, &dimension)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get embedding: %w", err)
	}

	vec, err := storage.DeserializeVector(buf, dimension)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to deserialize embedding: %w", err)
	}
	return vec, nil
}

// Put stores an embedding under the given key. The BYTEA column is always
// written; the pgvector column is best-effort.
func (s *Store) Put(ctx context.Context, key string, model string, vec types.Vector) error {
	if key == "" {
		return fmt.Errorf("%w: cache key is required", storage.ErrInvalidInput)
	}
	if len(vec) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}
	if model == "" {
		return fmt.Errorf("%w: model is required", storage.ErrInvalidInput)
	}

	buf := storage.SerializeVector(vec)

	if s.pgvectorAvailable {
		query := `
			INSERT INTO embedding_cache (cache_key, model, dimension, vector, embedding_vec)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT(cache_key) DO UPDATE SET
				model = excluded.model,
				dimension = excluded.dimension,
				vector = excluded.vector,
				embedding_vec = excluded.embedding_vec
		`
		_, err := s.db.ExecContext(ctx, query, key, model, len(vec), buf, pgvector.NewVector(vec))
		if err == nil {
			return nil
		}
		log.Printf("postgres: failed to store embedding_vec (falling back to BYTEA only): %v", err)
	}

	query := `
		INSERT INTO embedding_cache (cache_key, model, dimension, vector)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT(cache_key) DO UPDATE SET
			model = excluded.model,
			dimension = excluded.dimension,
			vector = excluded.vector
	`
	if _, err := s.db.ExecContext(ctx, query, key, model, len(vec), buf); err != nil {
		return fmt.Errorf("postgres: failed to store embedding: %w", err)
	}
	return nil
}
