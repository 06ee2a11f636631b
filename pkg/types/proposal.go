package types

import "fmt"

// IntentProposal is a candidate intent synthesized from one cluster's evidence.
// Immutable once emitted by the synthesizer; consumed by the taxonomy merger.
type IntentProposal struct {
	// ClusterID references the originating cluster within the same run.
	ClusterID int `json:"cluster_id"`

	// Name is the proposed intent name ("Primary > Secondary" form when the
	// oracle places it under an existing primary group).
	Name string `json:"name"`

	// Description is the oracle's description of the intent.
	Description string `json:"description"`

	// Examples are representative messages supporting the proposal.
	Examples []string `json:"examples"`

	// Confidence is the oracle's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// ClusterSupport is the size of the originating cluster.
	ClusterSupport int `json:"cluster_support"`

	// Distinctiveness is the cluster's separation from the nearest existing
	// intent or neighboring cluster.
	Distinctiveness float64 `json:"distinctiveness"`

	// Action is the proposal outcome: NEW, SPLIT, MERGE, or REJECTED.
	Action ProposalAction `json:"action"`

	// MergeTarget names the existing taxonomy entry a MERGE folds into.
	MergeTarget string `json:"merge_target,omitempty"`

	// Reasoning is the oracle's (or a guardrail's) free-text justification.
	Reasoning string `json:"reasoning"`
}

// Validate checks proposal fields for internal consistency.
func (p *IntentProposal) Validate() error {
	if !IsValidProposalAction(string(p.Action)) {
		return fmt.Errorf("invalid proposal action: %q", p.Action)
	}
	if p.Action != ActionRejected && p.Name == "" {
		return fmt.Errorf("proposal for cluster %d has no intent name", p.ClusterID)
	}
	if p.Confidence < 0.0 || p.Confidence > 1.0 {
		return fmt.Errorf("invalid confidence score: %f (must be 0.0-1.0)", p.Confidence)
	}
	if p.Action == ActionMerge && p.MergeTarget == "" {
		return fmt.Errorf("MERGE proposal for cluster %d has no merge target", p.ClusterID)
	}
	return nil
}

// Accepted reports whether the proposal mutates the taxonomy when merged.
func (p *IntentProposal) Accepted() bool {
	return p.Action == ActionNew || p.Action == ActionSplit || p.Action == ActionMerge
}
