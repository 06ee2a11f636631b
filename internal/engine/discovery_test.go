package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/intentgap/internal/config"
	storagesqlite "github.com/scrypster/intentgap/internal/storage/sqlite"
	"github.com/scrypster/intentgap/pkg/types"
)

func discoveryConfig(targetK int) *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			OracleTimeout:    time.Second,
			OracleRetries:    0,
			OracleRatePerSec: 1000,
			SynthesisWorkers: 2,
			EmbeddingWorkers: 4,
		},
		Clustering: config.ClusteringConfig{
			Strategy:        config.StrategyAgglomerative,
			TargetK:         targetK,
			MinClusterSize:  3,
			Representatives: 5,
		},
		Guardrails: config.GuardrailConfig{
			CohesionThreshold:    0.3,
			ConfidenceThreshold:  0.6,
			DistinctivenessFloor: 0.15,
			DuplicateSimilarity:  0.85,
		},
		Validation: config.ValidationConfig{MajorityFraction: 0.8, PassCohesion: 0.4},
	}
}

func topicMessages(prefix string, texts []string) []types.Message {
	out := make([]types.Message, len(texts))
	for i, text := range texts {
		out[i] = types.Message{ID: fmt.Sprintf("%s-%d", prefix, i), Text: text}
	}
	return out
}

var (
	passwordTexts = []string{
		"please reset my password",
		"cannot login to my account",
		"I am locked out of the app",
		"sign in keeps failing",
		"lost account access after the update",
	}
	orderTexts = []string{
		"where is my order",
		"tracking number not updating",
		"package never arrived",
		"delivery is three days late",
		"shipment stuck in transit",
	}
	b2bTexts = []string{
		"I want to partner with your brand",
		"do you have a reseller program",
		"b2b collaboration request",
		"I want to be a distributor",
		"are franchise options available",
	}
)

func TestDiscovery_FullRunFindsGap(t *testing.T) {
	var messages []types.Message
	messages = append(messages, topicMessages("pw", passwordTexts)...)
	messages = append(messages, topicMessages("ord", orderTexts)...)
	messages = append(messages, topicMessages("b2b", b2bTexts)...)

	oracle := &scriptedOracle{
		responses: map[string]string{
			"reset my password": proposalJSON("EXISTING", "Account > Login Issues", 0.9),
			"tracking number":   proposalJSON("EXISTING", "Orders > Order Status", 0.9),
			"reseller program":  proposalJSON("NEW", "Partnership / B2B Inquiry", 0.95),
		},
	}

	d, err := NewDiscovery(discoveryConfig(3), oracle, &topicEmbedding{}, nil)
	require.NoError(t, err)

	result, err := d.Run(context.Background(), messages, testTaxonomy())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 15, result.TotalMessages)
	assert.Equal(t, 1.0, result.Overall.Coverage)
	assert.Greater(t, result.Overall.Cohesion, 0.9)
	require.Len(t, result.Clusters, 3)
	require.Len(t, result.Proposals, 3)

	// Password and order clusters fold into existing intents; the B2B
	// cluster surfaces as the gap.
	assert.Equal(t, types.ActionMerge, result.Proposals[0].Action)
	assert.Equal(t, "Account > Login Issues", result.Proposals[0].MergeTarget)
	assert.Equal(t, types.ActionMerge, result.Proposals[1].Action)
	assert.Equal(t, types.ActionNew, result.Proposals[2].Action)
	assert.Equal(t, "Partnership / B2B Inquiry", result.Proposals[2].Name)

	require.Len(t, result.Taxonomy.Entries, 3)
	added := result.Taxonomy.Entries[2]
	assert.Equal(t, "partnership_b2b_inquiry", added.ID)
	assert.Equal(t, types.AddedByPipeline, added.AddedBy)
	assert.Equal(t, 2, result.Taxonomy.Version)

	require.Len(t, result.AuditRecords, 3)
	for _, rec := range result.AuditRecords {
		assert.Equal(t, result.RunID, rec.RunID)
		assert.Greater(t, rec.Cohesion, 0.9, "audit carries the cluster cohesion")
	}

	assert.Equal(t, "Partnership / B2B Inquiry", result.Clusters[2].ProposedIntent)
	assert.Empty(t, result.Clusters[0].ProposedIntent, "merges do not claim a new intent name")
}

func TestDiscovery_DominantKnownIntentAddsNothing(t *testing.T) {
	var messages []types.Message
	for i := 0; i < 10; i++ {
		messages = append(messages, types.Message{
			ID: fmt.Sprintf("pw-%d", i), Text: "I need to reset my password",
		})
	}
	messages = append(messages, topicMessages("ord", orderTexts[:2])...)

	oracle := &scriptedOracle{
		fallback: proposalJSON("EXISTING", "Account > Login Issues", 0.9),
	}

	d, err := NewDiscovery(discoveryConfig(2), oracle, &topicEmbedding{}, nil)
	require.NoError(t, err)

	tax := testTaxonomy()
	tax.Entries[1].Examples = []string{"I need to reset my password"}
	result, err := d.Run(context.Background(), messages, tax)
	require.NoError(t, err)

	// The small order cluster is ineligible; the password cluster merges.
	// Nothing new enters the taxonomy.
	assert.Len(t, result.Taxonomy.Entries, 2)
	assert.Equal(t, 1, result.Taxonomy.Version, "no mutation means no version bump")

	for _, p := range result.Proposals {
		assert.NotEqual(t, types.ActionNew, p.Action)
		assert.NotEqual(t, types.ActionSplit, p.Action)
	}
}

func TestDiscovery_UniformCorpusFormsSingleCluster(t *testing.T) {
	// 100 near-identical messages with the default-sized k collapse to one
	// cluster carrying the full support.
	var messages []types.Message
	for i := 0; i < 100; i++ {
		messages = append(messages, types.Message{
			ID: fmt.Sprintf("pw-%d", i), Text: "I need to reset my password",
		})
	}

	oracle := &scriptedOracle{fallback: proposalJSON("NEW", "Account > Password Reset", 0.9)}

	d, err := NewDiscovery(discoveryConfig(12), oracle, &topicEmbedding{}, nil)
	require.NoError(t, err)

	result, err := d.Run(context.Background(), messages, &types.Taxonomy{Version: 1})
	require.NoError(t, err)

	require.Len(t, result.Clusters, 1)
	require.Len(t, result.Proposals, 1)
	p := result.Proposals[0]
	assert.Equal(t, types.ActionNew, p.Action)
	assert.Equal(t, "Account > Password Reset", p.Name)
	assert.Equal(t, 100, p.ClusterSupport)

	require.Len(t, result.Taxonomy.Entries, 1)
	assert.Equal(t, 2, result.Taxonomy.Version)
}

func TestDiscovery_EmptyCorpus(t *testing.T) {
	d, err := NewDiscovery(discoveryConfig(2), &scriptedOracle{}, &topicEmbedding{}, nil)
	require.NoError(t, err)

	_, err = d.Run(context.Background(), nil, testTaxonomy())
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestDiscovery_PersistsRunArtifacts(t *testing.T) {
	store, err := storagesqlite.OpenDSN(":memory:")
	require.NoError(t, err)
	defer store.Close()

	var messages []types.Message
	messages = append(messages, topicMessages("b2b", b2bTexts)...)

	oracle := &scriptedOracle{fallback: proposalJSON("NEW", "Partnership / B2B Inquiry", 0.95)}

	gen := &topicEmbedding{}
	d, err := NewDiscovery(discoveryConfig(1), oracle, gen, store)
	require.NoError(t, err)

	ctx := context.Background()
	result, err := d.Run(ctx, messages, testTaxonomy())
	require.NoError(t, err)

	records, err := store.ListByRun(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.ActionNew, records[0].Action)

	saved, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.Taxonomy.Version, saved.Version)
	assert.NotNil(t, saved.Find("Partnership / B2B Inquiry"))

	// Rerunning over the merged taxonomy is a no-op for the taxonomy (the
	// duplicate guardrail folds the repeat proposal into a merge) and the
	// embedding cache serves every text.
	callsAfterFirst := gen.callCount()
	second, err := d.Run(ctx, messages, result.Taxonomy)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst+1, gen.callCount(),
		"only the intent added by the first run needs a fresh embedding")
	assert.Equal(t, result.Taxonomy.Version, second.Taxonomy.Version)
	assert.Len(t, second.Taxonomy.Entries, len(result.Taxonomy.Entries))
}
