// Package types defines the core data structures for the intentgap discovery
// pipeline: messages, clusters, intent proposals, the working taxonomy, and the
// audit trail produced by a discovery run.
package types

// Vector is a fixed-dimension embedding vector.
type Vector []float32

// NoiseClusterID marks messages that the density-based strategy could not
// assign to any dense cluster. It is a pseudo-cluster: noise members never
// reach the synthesizer.
const NoiseClusterID = -1

// ProposalAction represents the outcome class of an intent proposal.
type ProposalAction string

// Proposal action constants
const (
	// ActionNew indicates the cluster represents a completely missing intent.
	ActionNew ProposalAction = "NEW"

	// ActionSplit indicates the cluster is a sub-topic of one existing intent
	// that deserves to be separated out.
	ActionSplit ProposalAction = "SPLIT"

	// ActionMerge indicates the cluster duplicates an existing intent; its
	// examples are folded into the existing entry.
	ActionMerge ProposalAction = "MERGE"

	// ActionRejected indicates the proposal failed a guardrail and the
	// taxonomy is left unchanged.
	ActionRejected ProposalAction = "REJECTED"
)

// ValidProposalActions is a slice of all valid proposal actions for validation.
var ValidProposalActions = []ProposalAction{
	ActionNew,
	ActionSplit,
	ActionMerge,
	ActionRejected,
}

// IsValidProposalAction checks if the given action is a recognized proposal action.
func IsValidProposalAction(action string) bool {
	for _, a := range ValidProposalActions {
		if string(a) == action {
			return true
		}
	}
	return false
}

// Message is a single customer message from the cleaned corpus.
// Immutable once loaded.
type Message struct {
	// ID uniquely identifies the message within the corpus.
	ID string `json:"id"`

	// Text is the cleaned full text ("Context: ... New Message: ..." form).
	Text string `json:"text"`

	// Intent is the existing-intent label, empty when unlabeled (taxonomy gap).
	Intent string `json:"intent,omitempty"`

	// Injected marks synthetic messages added by the validation harness.
	// Ground truth only; never visible to the clustering or the oracle.
	Injected bool `json:"injected,omitempty"`
}

// Cluster is one candidate intent cluster produced by a single run.
// Cluster IDs are run-local indices and must never be persisted as if stable
// across runs.
type Cluster struct {
	// ID is the run-local cluster index (NoiseClusterID for the noise
	// pseudo-cluster).
	ID int `json:"id"`

	// MessageIDs are the corpus IDs of the cluster members.
	MessageIDs []string `json:"message_ids"`

	// Centroid is the mean of the member vectors.
	Centroid Vector `json:"-"`

	// Representatives are the member texts closest to the centroid,
	// in increasing centroid distance order.
	Representatives []string `json:"representative_samples"`

	// Size is the member count.
	Size int `json:"size"`

	// Cohesion is the per-cluster silhouette-style score in [-1, 1].
	Cohesion float64 `json:"cohesion"`

	// Separation is the distance from the centroid to the nearest other
	// cluster centroid (higher means more distinct).
	Separation float64 `json:"separation"`
}

// IsNoise reports whether the cluster is the noise pseudo-cluster.
func (c *Cluster) IsNoise() bool {
	return c.ID == NoiseClusterID
}
