package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/scrypster/intentgap/internal/config"
	"github.com/scrypster/intentgap/internal/corpus"
	"github.com/scrypster/intentgap/internal/llm"
	"github.com/scrypster/intentgap/pkg/types"
)

// Reasonings attached to guardrail rejections. These appear verbatim in the
// audit trail, so operators can filter on them.
const (
	ReasonIneligible        = "cluster below eligibility thresholds"
	ReasonOracleUnavailable = "oracle unavailable"
	ReasonInvalidResponse   = "invalid oracle response"
)

// Synthesizer asks the oracle to name eligible clusters and runs every
// response through the guardrail pipeline before anything reaches the
// taxonomy. Oracle calls fan out over a worker pool but share one rate
// limiter, so the provider sees a steady request rate regardless of worker
// count.
type Synthesizer struct {
	oracle   llm.TextGenerator
	embedder *Embedder // optional, enables embedding-based duplicate checks
	limiter  *rate.Limiter
	llmCfg   config.LLMConfig
	guard    config.GuardrailConfig
	minSize  int
}

// NewSynthesizer creates a Synthesizer. embedder may be nil; the duplicate
// guardrail then falls back to slug comparison only.
func NewSynthesizer(oracle llm.TextGenerator, embedder *Embedder, cfg *config.Config) *Synthesizer {
	return &Synthesizer{
		oracle:   oracle,
		embedder: embedder,
		limiter:  rate.NewLimiter(rate.Limit(cfg.LLM.OracleRatePerSec), 1),
		llmCfg:   cfg.LLM,
		guard:    cfg.Guardrails,
		minSize:  cfg.Clustering.MinClusterSize,
	}
}

type synthesisJob struct {
	cluster *types.Cluster
}

// Synthesize produces one proposal per cluster. Clusters that fail a
// guardrail still get a proposal, with ActionRejected and the reasoning
// recorded. Results are sorted by cluster ID.
func (s *Synthesizer) Synthesize(ctx context.Context, clusters []*types.Cluster, tax *types.Taxonomy, intentVectors map[string]types.Vector) ([]*types.IntentProposal, error) {
	if len(clusters) == 0 {
		return nil, nil
	}

	intentMap := corpus.FlattenIntentMap(tax)

	jobs := make(chan synthesisJob)
	results := make([]*types.IntentProposal, 0, len(clusters))
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := s.llmCfg.SynthesisWorkers
	if workers <= 0 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobs {
				proposal := s.synthesizeCluster(ctx, job.cluster, tax, intentMap, intentVectors, clusters)
				mu.Lock()
				results = append(results, proposal)
				mu.Unlock()
			}
		}(w)
	}

	for _, c := range clusters {
		select {
		case jobs <- synthesisJob{cluster: c}:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].ClusterID < results[j].ClusterID })
	return results, nil
}

// synthesizeCluster runs the full per-cluster pipeline: eligibility, oracle
// call with retries, then the guardrails in order (schema, confidence,
// duplicate, distinctiveness).
func (s *Synthesizer) synthesizeCluster(ctx context.Context, c *types.Cluster, tax *types.Taxonomy, intentMap string, intentVectors map[string]types.Vector, all []*types.Cluster) *types.IntentProposal {
	base := &types.IntentProposal{
		ClusterID:      c.ID,
		ClusterSupport: c.Size,
	}

	if !Eligible(c, s.minSize, s.guard.CohesionThreshold) {
		return rejected(base, ReasonIneligible)
	}

	raw, err := s.callOracle(ctx, intentMap, c)
	if err != nil {
		log.Printf("Cluster %d: oracle call failed: %v", c.ID, err)
		return rejected(base, ReasonOracleUnavailable)
	}

	// Guardrail 1: schema. A response that does not parse into the
	// documented contract is rejected, never retried.
	resp, err := llm.ParseProposalResponse(raw)
	if err != nil {
		log.Printf("Cluster %d: %v", c.ID, err)
		return rejected(base, ReasonInvalidResponse)
	}

	base.Name = resp.IntentName
	base.Description = resp.Description
	base.Confidence = resp.Confidence
	base.Reasoning = resp.Reasoning
	base.Examples = exampleSnippets(c)

	// Guardrail 2: confidence floor.
	if resp.Confidence < s.guard.ConfidenceThreshold {
		return rejected(base, fmt.Sprintf("confidence %.2f below floor %.2f", resp.Confidence, s.guard.ConfidenceThreshold))
	}

	// An EXISTING verdict is the oracle saying the cluster already has a
	// home. It becomes a merge into the named entry.
	if resp.Proposal == llm.VerdictExisting {
		entry := tax.Find(resp.IntentName)
		if entry == nil {
			return rejected(base, fmt.Sprintf("oracle named unknown existing intent %q", resp.IntentName))
		}
		base.Action = types.ActionMerge
		base.MergeTarget = entry.Name
		return base
	}

	// Guardrail 3: duplicate check. A NEW or SPLIT proposal whose name or
	// description already matches an existing entry (by slug, or by
	// embedding when available) becomes a merge rather than a
	// near-duplicate entry.
	if target := s.findDuplicate(ctx, resp.IntentName, resp.Description, tax, intentVectors); target != "" {
		base.Action = types.ActionMerge
		base.MergeTarget = target
		return base
	}

	// Guardrail 4: distinctiveness. The cluster centroid must sit far
	// enough from every existing intent centroid; without intent
	// embeddings, the nearest other cluster stands in.
	base.Distinctiveness = s.distinctiveness(c, intentVectors, all)
	if base.Distinctiveness < s.guard.DistinctivenessFloor {
		return rejected(base, fmt.Sprintf("distinctiveness %.3f below floor %.3f", base.Distinctiveness, s.guard.DistinctivenessFloor))
	}

	if resp.Proposal == llm.VerdictSplit {
		base.Action = types.ActionSplit
	} else {
		base.Action = types.ActionNew
	}
	return base
}

// callOracle performs one rate-limited oracle call with a per-call timeout,
// retrying transient failures with exponential backoff. Permanent failures
// return immediately.
func (s *Synthesizer) callOracle(ctx context.Context, intentMap string, c *types.Cluster) (string, error) {
	prompt := llm.ProposalPrompt(intentMap, c.Representatives, c.Size)

	var lastErr error
	for attempt := 0; attempt <= s.llmCfg.OracleRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			log.Printf("Cluster %d: retrying oracle call in %v (attempt %d)", c.ID, backoff, attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.llmCfg.OracleTimeout)
		raw, err := s.oracle.Complete(callCtx, prompt)
		cancel()
		if err == nil {
			return raw, nil
		}

		lastErr = err
		if !llm.IsTransient(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("oracle retries exhausted: %w", lastErr)
}

// findDuplicate returns the name of an existing entry the proposal
// duplicates, or "" when the intent is genuinely new. The embedding check
// covers the name and description together, the same "Name: Description"
// form existing entries are embedded in, so a paraphrased name with a
// familiar description still counts as a duplicate.
func (s *Synthesizer) findDuplicate(ctx context.Context, name, description string, tax *types.Taxonomy, intentVectors map[string]types.Vector) string {
	slug := types.Slugify(name)
	for _, e := range tax.Entries {
		if types.Slugify(e.Name) == slug {
			return e.Name
		}
		// "Orders > Order Status" and a bare "Order Status" are the
		// same intent at different depths.
		if _, secondary := splitName(e.Name); types.Slugify(secondary) == slug {
			return e.Name
		}
	}

	if s.embedder == nil || len(intentVectors) == 0 {
		return ""
	}
	vecs, err := s.embedder.EmbedAll(ctx, []string{fmt.Sprintf("%s: %s", name, description)})
	if err != nil || len(vecs) == 0 {
		log.Printf("WARNING: duplicate check embedding failed for %q: %v", name, err)
		return ""
	}

	bestName, bestSim := "", 0.0
	for entryName, vec := range intentVectors {
		if sim := cosineSimilarity(vecs[0], vec); sim > bestSim {
			bestName, bestSim = entryName, sim
		}
	}
	if bestSim >= s.guard.DuplicateSimilarity {
		return bestName
	}
	return ""
}

// distinctiveness measures how far the cluster centroid sits from the
// nearest existing intent (cosine distance). Without intent embeddings the
// nearest other cluster centroid is used instead.
func (s *Synthesizer) distinctiveness(c *types.Cluster, intentVectors map[string]types.Vector, all []*types.Cluster) float64 {
	if len(intentVectors) > 0 {
		best := 1.0
		for _, vec := range intentVectors {
			if d := 1 - cosineSimilarity(c.Centroid, vec); d < best {
				best = d
			}
		}
		return best
	}
	return nearestCentroidDistance(c, all)
}

func rejected(p *types.IntentProposal, reasoning string) *types.IntentProposal {
	p.Action = types.ActionRejected
	if p.Reasoning == "" {
		p.Reasoning = reasoning
	} else {
		p.Reasoning = reasoning + "; oracle said: " + p.Reasoning
	}
	return p
}

// exampleSnippets returns the representative messages trimmed for use as
// taxonomy entry examples.
func exampleSnippets(c *types.Cluster) []string {
	out := make([]string, 0, len(c.Representatives))
	for _, r := range c.Representatives {
		// Strip the context prefix; examples read better as bare messages.
		if idx := strings.Index(r, "New Message: "); idx >= 0 {
			r = r[idx+len("New Message: "):]
		}
		out = append(out, strings.TrimSpace(r))
	}
	return out
}

func splitName(name string) (primary, secondary string) {
	if idx := strings.Index(name, " > "); idx >= 0 {
		return strings.TrimSpace(name[:idx]), strings.TrimSpace(name[idx+3:])
	}
	return "", name
}
