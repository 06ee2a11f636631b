package types

import "time"

// AuditRecord is one append-only row in the decision trail: exactly one per
// proposal outcome, accepted or rejected.
type AuditRecord struct {
	// ID is a UUID assigned at creation.
	ID string `json:"id"`

	// RunID identifies the discovery run that produced the record.
	RunID string `json:"run_id"`

	// Timestamp is the record creation time.
	Timestamp time.Time `json:"timestamp"`

	// ClusterID is the run-local cluster the proposal originated from.
	ClusterID int `json:"cluster_id"`

	// Action is the proposal outcome.
	Action ProposalAction `json:"action"`

	// IntentName is the proposed (or target existing) intent name.
	IntentName string `json:"intent_name"`

	// MergeTarget names the entry a MERGE folded into, empty otherwise.
	MergeTarget string `json:"merge_target,omitempty"`

	// Confidence is the oracle's self-reported confidence.
	Confidence float64 `json:"confidence"`

	// Cohesion is the originating cluster's cohesion score.
	Cohesion float64 `json:"cohesion"`

	// Distinctiveness is the originating cluster's separation score.
	Distinctiveness float64 `json:"distinctiveness"`

	// ClusterSupport is the originating cluster's size.
	ClusterSupport int `json:"cluster_support"`

	// Reasoning is the free-text justification for the outcome.
	Reasoning string `json:"reasoning"`
}

// EvaluationMetrics holds corpus-level clustering quality scores.
type EvaluationMetrics struct {
	// Cohesion is the silhouette-style score over non-noise points, in [-1, 1].
	Cohesion float64 `json:"cohesion_score"`

	// Separation is the Davies-Bouldin-style score inverted so that higher is
	// better (1 / (1 + DB)).
	Separation float64 `json:"separation_score"`

	// Coverage is the fraction of messages assigned to a non-noise cluster.
	Coverage float64 `json:"coverage"`
}

// ClusterDiagnostics is the per-cluster output consumed by renderers.
type ClusterDiagnostics struct {
	ClusterID       int      `json:"cluster_id"`
	Size            int      `json:"size"`
	Percentage      float64  `json:"percentage"`
	Cohesion        float64  `json:"cohesion"`
	Separation      float64  `json:"separation"`
	Representatives []string `json:"representative_samples"`

	// ProposedIntent is the synthesized intent name, empty when the cluster
	// was ineligible or its proposal was rejected.
	ProposedIntent string `json:"proposed_intent,omitempty"`
}

// RunResult is the full structured output of one discovery run: the updated
// taxonomy, the audit trail, and raw per-run cluster diagnostics.
type RunResult struct {
	RunID         string               `json:"run_id"`
	StartedAt     time.Time            `json:"started_at"`
	TotalMessages int                  `json:"total_messages"`
	Overall       EvaluationMetrics    `json:"overall"`
	Clusters      []ClusterDiagnostics `json:"clusters"`
	Proposals     []*IntentProposal    `json:"proposals"`
	Taxonomy      *Taxonomy            `json:"taxonomy"`
	AuditRecords  []*AuditRecord       `json:"audit_records"`
}
