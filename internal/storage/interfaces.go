// Package storage provides composable storage interfaces for the discovery
// pipeline.
//
// The layer is split into small, focused interfaces that can be implemented
// independently: an append-only audit trail, a versioned taxonomy store, and
// an embedding cache keyed by content hash.
package storage

import (
	"context"
	"errors"

	"github.com/scrypster/intentgap/pkg/types"
)

// Common storage errors.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// AuditStore is the append-only record of every synthesis decision.
// Records are never updated or deleted; a rerun appends a new run's records.
type AuditStore interface {
	// Append writes one audit record.
	Append(ctx context.Context, rec *types.AuditRecord) error

	// ListByRun returns all records for a run, ordered by cluster ID.
	ListByRun(ctx context.Context, runID string) ([]*types.AuditRecord, error)

	// Runs returns the distinct run IDs present, newest first.
	Runs(ctx context.Context) ([]string, error)
}

// TaxonomyStore persists taxonomy snapshots. Each Save writes a new version;
// Load returns the latest.
type TaxonomyStore interface {
	// Save stores a taxonomy snapshot under its Version.
	// Returns ErrInvalidInput if the version is not greater than the latest.
	Save(ctx context.Context, tax *types.Taxonomy) error

	// Load retrieves the latest taxonomy snapshot.
	// Returns ErrNotFound when no snapshot has been saved.
	Load(ctx context.Context) (*types.Taxonomy, error)
}

// EmbeddingCache stores computed embeddings keyed by a content hash so reruns
// over an unchanged corpus skip the embedding provider entirely.
type EmbeddingCache interface {
	// Get retrieves a cached vector. Returns ErrNotFound on a miss.
	Get(ctx context.Context, key string) (types.Vector, error)

	// Put stores a vector under the given key (upsert semantics).
	Put(ctx context.Context, key string, model string, vec types.Vector) error
}

// Store bundles the three concerns behind one handle.
type Store interface {
	AuditStore
	TaxonomyStore
	EmbeddingCache

	// Close releases any resources held by the store.
	Close() error
}
