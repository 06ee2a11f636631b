// Package engine implements the discovery pipeline: embedding, clustering,
// evaluation, oracle synthesis behind guardrails, and taxonomy merging.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/intentgap/internal/config"
	"github.com/scrypster/intentgap/internal/llm"
	"github.com/scrypster/intentgap/internal/storage"
	"github.com/scrypster/intentgap/pkg/types"
)

// ErrNoMessages is returned when a run is started with an empty corpus.
var ErrNoMessages = errors.New("no messages to analyze")

// Discovery wires the pipeline stages together and executes full runs.
type Discovery struct {
	cfg       *config.Config
	embedder  *Embedder
	clusterer Clusterer
	synth     *Synthesizer
	merger    Merger
	eval      Evaluator
	store     storage.Store // optional; nil disables persistence
}

// NewDiscovery builds a Discovery from providers and configuration.
// store may be nil, in which case nothing is persisted and the embedding
// cache is disabled.
func NewDiscovery(cfg *config.Config, oracle llm.TextGenerator, embeddings llm.EmbeddingGenerator, store storage.Store) (*Discovery, error) {
	clusterer, err := NewClusterer(cfg.Clustering)
	if err != nil {
		return nil, err
	}

	var cache storage.EmbeddingCache
	if store != nil {
		cache = store
	}
	embedder := NewEmbedder(embeddings, cache, cfg.LLM.EmbeddingWorkers)

	return &Discovery{
		cfg:       cfg,
		embedder:  embedder,
		clusterer: clusterer,
		synth:     NewSynthesizer(oracle, embedder, cfg),
		store:     store,
	}, nil
}

// Run executes one full discovery pass: embed, cluster, evaluate,
// synthesize, merge. The input taxonomy is not mutated; the merged taxonomy
// is returned in the result and persisted when a store is configured.
func (d *Discovery) Run(ctx context.Context, messages []types.Message, tax *types.Taxonomy) (*types.RunResult, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	result := &types.RunResult{
		RunID:         uuid.New().String(),
		StartedAt:     time.Now().UTC(),
		TotalMessages: len(messages),
	}
	log.Printf("Run %s: analyzing %d messages against %d existing intents",
		result.RunID, len(messages), len(tax.Entries))

	texts := make([]string, len(messages))
	for i, m := range messages {
		texts[i] = m.Text
	}
	vectors, err := d.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	labels, err := d.clusterer.Assign(vectors)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	clusters := BuildClusters(messages, vectors, labels, d.cfg.Clustering.Representatives)
	log.Printf("Run %s: %d clusters formed", result.RunID, len(clusters))

	result.Overall = d.eval.Evaluate(clusters, vectors, labels)
	result.Clusters = d.eval.Diagnostics(clusters, len(messages))

	intentVectors, err := d.embedIntents(ctx, tax)
	if err != nil {
		// Distinctiveness degrades to cluster-vs-cluster; the run goes on.
		log.Printf("WARNING: run %s: intent embedding failed, using cluster separation only: %v", result.RunID, err)
		intentVectors = nil
	}

	proposals, err := d.synth.Synthesize(ctx, clusters, tax, intentVectors)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	result.Proposals = proposals
	annotateDiagnostics(result.Clusters, proposals)

	merge, err := d.merger.Apply(tax, proposals, result.RunID)
	if err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}
	fillCohesion(merge.Records, clusters)
	result.Taxonomy = merge.Taxonomy
	result.AuditRecords = merge.Records
	log.Printf("Run %s: %d intents added, %d merged, taxonomy at version %d",
		result.RunID, merge.Added, merge.Merged, merge.Taxonomy.Version)

	if d.store != nil {
		if err := d.persist(ctx, merge); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// embedIntents embeds each taxonomy entry's name and description, giving the
// distinctiveness guardrail a centroid per existing intent.
func (d *Discovery) embedIntents(ctx context.Context, tax *types.Taxonomy) (map[string]types.Vector, error) {
	if len(tax.Entries) == 0 {
		return nil, nil
	}
	texts := make([]string, len(tax.Entries))
	for i, e := range tax.Entries {
		texts[i] = fmt.Sprintf("%s: %s", e.Name, e.Description)
	}
	vecs, err := d.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.Vector, len(tax.Entries))
	for i, e := range tax.Entries {
		out[e.Name] = vecs[i]
	}
	return out, nil
}

func (d *Discovery) persist(ctx context.Context, merge *MergeResult) error {
	for _, rec := range merge.Records {
		if err := d.store.Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to persist audit record: %w", err)
		}
	}
	if merge.Added > 0 || merge.Merged > 0 {
		if err := d.store.Save(ctx, merge.Taxonomy); err != nil {
			// A version conflict means another run got there first.
			return fmt.Errorf("failed to persist taxonomy: %w", err)
		}
	}
	return nil
}

func annotateDiagnostics(diags []types.ClusterDiagnostics, proposals []*types.IntentProposal) {
	byCluster := make(map[int]*types.IntentProposal, len(proposals))
	for _, p := range proposals {
		byCluster[p.ClusterID] = p
	}
	for i := range diags {
		p, ok := byCluster[diags[i].ClusterID]
		if ok && (p.Action == types.ActionNew || p.Action == types.ActionSplit) {
			diags[i].ProposedIntent = p.Name
		}
	}
}

func fillCohesion(records []*types.AuditRecord, clusters []*types.Cluster) {
	byID := make(map[int]float64, len(clusters))
	for _, c := range clusters {
		byID[c.ID] = c.Cohesion
	}
	for _, rec := range records {
		rec.Cohesion = byID[rec.ClusterID]
	}
}
