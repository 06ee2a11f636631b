package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/intentgap/pkg/types"
)

func newProposal(clusterID int, name string) *types.IntentProposal {
	return &types.IntentProposal{
		ClusterID:      clusterID,
		Name:           name,
		Description:    "a distinct user goal",
		Examples:       []string{"example one", "example two"},
		Confidence:     0.9,
		ClusterSupport: 15,
		Action:         types.ActionNew,
		Reasoning:      "clearly novel",
	}
}

func TestMerger_AppendsNewIntent(t *testing.T) {
	tax := testTaxonomy()
	p := newProposal(0, "Partnerships > B2B Inquiry")

	result, err := Merger{}.Apply(tax, []*types.IntentProposal{p}, "run-1")
	require.NoError(t, err)

	assert.Len(t, tax.Entries, 2, "input taxonomy must not be mutated")
	require.Len(t, result.Taxonomy.Entries, 3)

	added := result.Taxonomy.Entries[2]
	assert.Equal(t, "partnerships_b2b_inquiry", added.ID)
	assert.Equal(t, "Partnerships > B2B Inquiry", added.Name)
	assert.Equal(t, types.AddedByPipeline, added.AddedBy)
	assert.Equal(t, []string{"example one", "example two"}, added.Examples)

	assert.Equal(t, 2, result.Taxonomy.Version, "mutating batch bumps the version")
	assert.Equal(t, 1, result.Added)
	require.Len(t, result.Records, 1)
	assert.Equal(t, types.ActionNew, result.Records[0].Action)
	assert.Equal(t, "run-1", result.Records[0].RunID)
	assert.NotEmpty(t, result.Records[0].ID)
}

func TestMerger_Idempotent(t *testing.T) {
	tax := testTaxonomy()
	proposals := []*types.IntentProposal{newProposal(0, "Partnerships > B2B Inquiry")}

	first, err := Merger{}.Apply(tax, proposals, "run-1")
	require.NoError(t, err)

	second, err := Merger{}.Apply(first.Taxonomy, proposals, "run-2")
	require.NoError(t, err)

	assert.Equal(t, len(first.Taxonomy.Entries), len(second.Taxonomy.Entries),
		"replaying the same proposals adds nothing")
	assert.Equal(t, first.Taxonomy.Version, second.Taxonomy.Version,
		"a no-op batch must not bump the version")
	assert.Zero(t, second.Added)
	require.Len(t, second.Records, 1, "the audit trail still records the replay")
}

func TestMerger_MergeAppendsExamplesOnly(t *testing.T) {
	tax := testTaxonomy()
	tax.Entries[0].Examples = []string{"existing example"}

	p := newProposal(0, "whatever the oracle said")
	p.Action = types.ActionMerge
	p.MergeTarget = "Orders > Order Status"
	p.Examples = []string{"existing example", "fresh example"}

	result, err := Merger{}.Apply(tax, []*types.IntentProposal{p}, "run-1")
	require.NoError(t, err)

	entry := result.Taxonomy.Find("Orders > Order Status")
	require.NotNil(t, entry)
	assert.Equal(t, []string{"existing example", "fresh example"}, entry.Examples,
		"duplicates are skipped, new examples appended")
	assert.Equal(t, "Where is my package", entry.Description,
		"merge never overwrites the curated description")
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 2, result.Taxonomy.Version)
}

func TestMerger_MergeWithNothingNewIsNoOp(t *testing.T) {
	tax := testTaxonomy()
	tax.Entries[0].Examples = []string{"already here"}

	p := newProposal(0, "x")
	p.Action = types.ActionMerge
	p.MergeTarget = "Orders > Order Status"
	p.Examples = []string{"already here"}

	result, err := Merger{}.Apply(tax, []*types.IntentProposal{p}, "run-1")
	require.NoError(t, err)
	assert.Zero(t, result.Merged)
	assert.Equal(t, 1, result.Taxonomy.Version, "no mutation, no version bump")
}

func TestMerger_MergeTargetMissingIsError(t *testing.T) {
	p := newProposal(0, "x")
	p.Action = types.ActionMerge
	p.MergeTarget = "Ghost Intent"

	_, err := Merger{}.Apply(testTaxonomy(), []*types.IntentProposal{p}, "run-1")
	assert.Error(t, err)
}

func TestMerger_RejectedLeavesOnlyAudit(t *testing.T) {
	tax := testTaxonomy()
	p := &types.IntentProposal{
		ClusterID: 4,
		Action:    types.ActionRejected,
		Reasoning: ReasonOracleUnavailable,
	}

	result, err := Merger{}.Apply(tax, []*types.IntentProposal{p}, "run-1")
	require.NoError(t, err)

	assert.Equal(t, tax.Entries, result.Taxonomy.Entries, "rejection never mutates the taxonomy")
	assert.Equal(t, 1, result.Taxonomy.Version)
	require.Len(t, result.Records, 1, "exactly one audit record per proposal")
	assert.Equal(t, types.ActionRejected, result.Records[0].Action)
	assert.Equal(t, ReasonOracleUnavailable, result.Records[0].Reasoning)
}

func TestMerger_SlugCollisionGetsSuffix(t *testing.T) {
	tax := testTaxonomy()
	proposals := []*types.IntentProposal{
		newProposal(0, "B2B Inquiry?"),
		newProposal(1, "B2B Inquiry!"),
	}

	result, err := Merger{}.Apply(tax, proposals, "run-1")
	require.NoError(t, err)

	require.Len(t, result.Taxonomy.Entries, 4)
	assert.Equal(t, "b2b_inquiry", result.Taxonomy.Entries[2].ID)
	assert.Equal(t, "b2b_inquiry_2", result.Taxonomy.Entries[3].ID)
}

func TestMerger_InvalidProposalRefused(t *testing.T) {
	p := &types.IntentProposal{ClusterID: 0, Action: types.ActionNew} // no name
	_, err := Merger{}.Apply(testTaxonomy(), []*types.IntentProposal{p}, "run-1")
	assert.Error(t, err)
}
