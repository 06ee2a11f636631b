package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/intentgap/pkg/types"
)

// Merger folds accepted proposals into the taxonomy. It never mutates its
// input: Apply works on a clone and returns it, alongside one audit record
// per proposal. Merging the same proposals twice leaves the taxonomy
// unchanged the second time.
type Merger struct{}

// MergeResult is the outcome of applying one batch of proposals.
type MergeResult struct {
	Taxonomy *types.Taxonomy
	Records  []*types.AuditRecord
	Added    int
	Merged   int
}

// Apply processes proposals in order. NEW and SPLIT append entries, MERGE
// folds examples into an existing entry, REJECTED only leaves an audit
// record. The version advances once per mutating batch.
func (Merger) Apply(tax *types.Taxonomy, proposals []*types.IntentProposal, runID string) (*MergeResult, error) {
	out := tax.Clone()
	result := &MergeResult{Taxonomy: out}
	mutated := false

	for _, p := range proposals {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("refusing to merge cluster %d: %w", p.ClusterID, err)
		}

		switch p.Action {
		case types.ActionNew, types.ActionSplit:
			if existing := out.Find(p.Name); existing != nil {
				// Same intent already present: nothing to add. This is
				// what makes a rerun of the same proposals a no-op.
				log.Printf("Cluster %d: intent %q already present, skipping append", p.ClusterID, p.Name)
				break
			}
			out.Entries = append(out.Entries, types.TaxonomyEntry{
				ID:          uniqueSlug(out, p.Name),
				Name:        p.Name,
				Description: p.Description,
				Examples:    append([]string(nil), p.Examples...),
				AddedBy:     types.AddedByPipeline,
			})
			result.Added++
			mutated = true

		case types.ActionMerge:
			entry := out.Find(p.MergeTarget)
			if entry == nil {
				return nil, fmt.Errorf("cluster %d: merge target %q not found", p.ClusterID, p.MergeTarget)
			}
			// Examples accumulate; the curated description is never
			// overwritten by pipeline output.
			if appendNewExamples(entry, p.Examples) {
				result.Merged++
				mutated = true
			}

		case types.ActionRejected:
			// Audit only.
		}

		result.Records = append(result.Records, auditRecord(p, runID))
	}

	if mutated {
		out.Version++
	}
	return result, nil
}

// uniqueSlug slugifies a name and disambiguates ID collisions with a numeric
// suffix. Distinct display names can share a slug ("B2B?" and "B2B!").
func uniqueSlug(tax *types.Taxonomy, name string) string {
	base := types.Slugify(name)
	slug := base
	for n := 2; slugTaken(tax, slug); n++ {
		slug = fmt.Sprintf("%s_%d", base, n)
	}
	return slug
}

func slugTaken(tax *types.Taxonomy, slug string) bool {
	for _, e := range tax.Entries {
		if e.ID == slug {
			return true
		}
	}
	return false
}

// appendNewExamples adds examples the entry does not already have and
// reports whether anything changed.
func appendNewExamples(entry *types.TaxonomyEntry, examples []string) bool {
	seen := make(map[string]bool, len(entry.Examples))
	for _, e := range entry.Examples {
		seen[e] = true
	}
	changed := false
	for _, e := range examples {
		if !seen[e] {
			entry.Examples = append(entry.Examples, e)
			seen[e] = true
			changed = true
		}
	}
	return changed
}

func auditRecord(p *types.IntentProposal, runID string) *types.AuditRecord {
	return &types.AuditRecord{
		ID:              uuid.New().String(),
		RunID:           runID,
		Timestamp:       time.Now().UTC(),
		ClusterID:       p.ClusterID,
		Action:          p.Action,
		IntentName:      p.Name,
		MergeTarget:     p.MergeTarget,
		Confidence:      p.Confidence,
		Distinctiveness: p.Distinctiveness,
		ClusterSupport:  p.ClusterSupport,
		Reasoning:       p.Reasoning,
	}
}
