package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/scrypster/intentgap/internal/config"
	"github.com/scrypster/intentgap/internal/corpus"
	"github.com/scrypster/intentgap/internal/llm"
	"github.com/scrypster/intentgap/pkg/types"
)

// Harness phases, in execution order.
const (
	PhaseLoadBaseline    = "LOAD_BASELINE"
	PhaseInjectSynthetic = "INJECT_SYNTHETIC"
	PhaseRecluster       = "RECLUSTER"
	PhaseEvaluate        = "EVALUATE"
	PhaseAssert          = "ASSERT"
)

// Validation verdicts, from best to worst.
const (
	VerdictPerfect  = "PERFECT"
	VerdictStrong   = "STRONG"
	VerdictPassable = "PASSABLE"
	VerdictFailure  = "FAILURE"
)

// ValidationReport is the outcome of one needle-in-a-haystack run.
type ValidationReport struct {
	Passed        bool     `json:"passed"`
	Verdict       string   `json:"verdict"`
	IntentName    string   `json:"intent_name"`
	Injected      int      `json:"injected"`
	TotalMessages int      `json:"total_messages"`
	BestClusterID int      `json:"best_cluster_id"` // -1 when no candidate cluster found
	Recall        float64  `json:"recall"`
	Precision     float64  `json:"precision"`
	Cohesion      float64  `json:"cohesion"` // cohesion of the best cluster
	Phases        []string `json:"phases"`

	// ProposedIntent and ProposalAction carry the synthesizer's judgement of
	// the best cluster; ProposedIntent is empty when no cluster captured the
	// injection or the cluster never reached the oracle.
	ProposedIntent string               `json:"proposed_intent,omitempty"`
	ProposalAction types.ProposalAction `json:"proposal_action,omitempty"`

	Overall  types.EvaluationMetrics    `json:"overall"`
	Clusters []types.ClusterDiagnostics `json:"clusters"`
}

// Harness runs the sensitivity test: inject messages of a known-novel intent
// into a baseline corpus, recluster, and check that (a) one cluster captures
// the injected majority, (b) that cluster is cohesive, and (c) the
// synthesizer proposes it as a NEW intent under a name related to the
// injected category. PASS requires all three.
type Harness struct {
	cfg       *config.Config
	embedder  *Embedder
	clusterer Clusterer
	synth     *Synthesizer
	eval      Evaluator
}

// NewHarness builds a validation harness. The embedding cache is not used so
// injected synthetics never pollute a shared cache store.
func NewHarness(cfg *config.Config, oracle llm.TextGenerator, embeddings llm.EmbeddingGenerator) (*Harness, error) {
	clusterer, err := NewClusterer(cfg.Clustering)
	if err != nil {
		return nil, err
	}
	embedder := NewEmbedder(embeddings, nil, cfg.LLM.EmbeddingWorkers)
	return &Harness{
		cfg:       cfg,
		embedder:  embedder,
		clusterer: clusterer,
		synth:     NewSynthesizer(oracle, embedder, cfg),
	}, nil
}

// Run executes the harness phases in order and returns the report. The
// baseline corpus and the taxonomy are never modified; injection happens on
// a copy, and synthesis runs against a taxonomy clone.
func (h *Harness) Run(ctx context.Context, baseline []types.Message, tax *types.Taxonomy, set corpus.InjectionSet) (*ValidationReport, error) {
	report := &ValidationReport{
		IntentName:    set.IntentName,
		Injected:      len(set.Messages),
		BestClusterID: -1,
	}
	phase := func(name string) {
		report.Phases = append(report.Phases, name)
		log.Printf("Validation: %s", name)
	}
	if tax == nil {
		tax = &types.Taxonomy{Version: 1}
	}

	phase(PhaseLoadBaseline)
	if len(baseline) == 0 {
		return nil, ErrNoMessages
	}
	if len(set.Messages) == 0 {
		return nil, fmt.Errorf("injection set %q has no messages", set.IntentName)
	}

	phase(PhaseInjectSynthetic)
	combined := make([]types.Message, 0, len(baseline)+len(set.Messages))
	combined = append(combined, baseline...)
	combined = append(combined, set.ToMessages()...)
	report.TotalMessages = len(combined)

	phase(PhaseRecluster)
	texts := make([]string, len(combined))
	for i, m := range combined {
		texts[i] = m.Text
	}
	vectors, err := h.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	labels, err := h.clusterer.Assign(vectors)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	clusters := BuildClusters(combined, vectors, labels, h.cfg.Clustering.Representatives)

	phase(PhaseEvaluate)
	report.Overall = h.eval.Evaluate(clusters, vectors, labels)
	report.Clusters = h.eval.Diagnostics(clusters, len(combined))

	// Count injected members per cluster and keep the best by recall.
	injectedByCluster := make(map[int]int)
	for i, m := range combined {
		if m.Injected && labels[i] != types.NoiseClusterID {
			injectedByCluster[labels[i]]++
		}
	}
	var bestCluster *types.Cluster
	for _, c := range clusters {
		found := injectedByCluster[c.ID]
		if found == 0 {
			continue
		}
		recall := float64(found) / float64(len(set.Messages))
		if recall > report.Recall {
			report.Recall = recall
			report.Precision = float64(found) / float64(c.Size)
			report.BestClusterID = c.ID
			bestCluster = c
		}
	}

	proposedNew := false
	if bestCluster != nil {
		report.Cohesion = bestCluster.Cohesion

		// Only the candidate cluster reaches the oracle; the rest of the
		// corpus is baseline traffic the taxonomy already covers.
		proposals, err := h.synth.Synthesize(ctx, []*types.Cluster{bestCluster}, tax.Clone(), nil)
		if err != nil {
			return nil, fmt.Errorf("synthesis failed: %w", err)
		}
		if len(proposals) == 1 {
			report.ProposalAction = proposals[0].Action
			report.ProposedIntent = proposals[0].Name
			proposedNew = proposals[0].Action == types.ActionNew &&
				nameMatches(proposals[0].Name, set.IntentName)
		}
	}

	phase(PhaseAssert)
	report.Passed = report.Recall >= h.cfg.Validation.MajorityFraction &&
		report.Cohesion >= h.cfg.Validation.PassCohesion &&
		proposedNew
	report.Verdict = verdict(report)

	if report.Passed {
		log.Printf("Validation PASS: cluster %d recovered %.0f%% of %q as %q (precision %.0f%%)",
			report.BestClusterID, report.Recall*100, set.IntentName,
			report.ProposedIntent, report.Precision*100)
	} else {
		log.Printf("Validation FAIL: recall %.0f%%, cohesion %.2f, proposal %s %q (need recall >= %.0f%%, cohesion >= %.2f, and a NEW proposal naming the injected intent)",
			report.Recall*100, report.Cohesion, report.ProposalAction, report.ProposedIntent,
			h.cfg.Validation.MajorityFraction*100, h.cfg.Validation.PassCohesion)
	}
	return report, nil
}

// verdict grades the result. PASSABLE means the intent surfaced but with too
// many missed or contaminating messages, or an off-target proposal, to pass.
func verdict(r *ValidationReport) string {
	switch {
	case r.Passed && r.Recall == 1 && r.Precision == 1:
		return VerdictPerfect
	case r.Passed:
		return VerdictStrong
	case r.Recall > 0.5:
		return VerdictPassable
	default:
		return VerdictFailure
	}
}

// nameMatches reports whether the proposed intent name shares at least one
// meaningful token with the injected intent name, ignoring case, punctuation,
// and any primary-group prefix.
func nameMatches(proposed, want string) bool {
	wanted := nameTokens(want)
	for tok := range nameTokens(proposed) {
		if wanted[tok] {
			return true
		}
	}
	return false
}

func nameTokens(name string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			out[f] = true
		}
	}
	return out
}
