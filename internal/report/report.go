// Package report renders run results for humans: a markdown summary of the
// discovery run and a CSV audit file matching the review spreadsheet layout.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/scrypster/intentgap/pkg/types"
)

var actionRank = map[types.ProposalAction]int{
	types.ActionNew:      0,
	types.ActionSplit:    1,
	types.ActionMerge:    2,
	types.ActionRejected: 3,
}

// sortProposals orders proposals for presentation: accepted work first
// (NEW, SPLIT, MERGE), rejections last, cluster ID as tiebreak.
func sortProposals(proposals []*types.IntentProposal) []*types.IntentProposal {
	out := append([]*types.IntentProposal(nil), proposals...)
	sort.SliceStable(out, func(i, j int) bool {
		if actionRank[out[i].Action] != actionRank[out[j].Action] {
			return actionRank[out[i].Action] < actionRank[out[j].Action]
		}
		return out[i].ClusterID < out[j].ClusterID
	})
	return out
}

// WriteMarkdown renders the full run report.
func WriteMarkdown(w io.Writer, result *types.RunResult) error {
	var sb strings.Builder

	sb.WriteString("# Intent Gap Discovery Report\n\n")
	fmt.Fprintf(&sb, "- Run: `%s`\n", result.RunID)
	fmt.Fprintf(&sb, "- Started: %s\n", result.StartedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&sb, "- Messages analyzed: %d\n", result.TotalMessages)
	fmt.Fprintf(&sb, "- Clusters: %d\n", len(result.Clusters))
	fmt.Fprintf(&sb, "- Taxonomy version: %d (%d intents)\n\n",
		result.Taxonomy.Version, len(result.Taxonomy.Entries))

	sb.WriteString("## Quality\n\n")
	fmt.Fprintf(&sb, "| Cohesion | Separation | Coverage |\n")
	fmt.Fprintf(&sb, "|---|---|---|\n")
	fmt.Fprintf(&sb, "| %.3f | %.3f | %.1f%% |\n\n",
		result.Overall.Cohesion, result.Overall.Separation, result.Overall.Coverage*100)

	sb.WriteString("## Proposals\n\n")
	sb.WriteString("| Cluster | Action | Intent | Confidence | Support |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, p := range sortProposals(result.Proposals) {
		name := p.Name
		if p.Action == types.ActionMerge {
			name = fmt.Sprintf("→ %s", p.MergeTarget)
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %.2f | %d |\n",
			p.ClusterID, p.Action, name, p.Confidence, p.ClusterSupport)
	}
	sb.WriteString("\n")

	sb.WriteString("## Clusters\n\n")
	for _, c := range result.Clusters {
		fmt.Fprintf(&sb, "### Cluster %d\n\n", c.ClusterID)
		fmt.Fprintf(&sb, "- Size: %d (%.1f%% of corpus)\n", c.Size, c.Percentage)
		fmt.Fprintf(&sb, "- Cohesion: %.3f, separation: %.3f\n", c.Cohesion, c.Separation)
		if c.ProposedIntent != "" {
			fmt.Fprintf(&sb, "- Proposed intent: **%s**\n", c.ProposedIntent)
		}
		sb.WriteString("- Representative messages:\n")
		for _, r := range c.Representatives {
			fmt.Fprintf(&sb, "  - %s\n", truncate(r, 120))
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteCSV renders the audit spreadsheet, one row per cluster proposal.
func WriteCSV(w io.Writer, result *types.RunResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Cluster_ID", "Size", "Proposal", "Intent_Name", "Confidence", "Reasoning"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, p := range sortProposals(result.Proposals) {
		row := []string{
			strconv.Itoa(p.ClusterID),
			strconv.Itoa(p.ClusterSupport),
			string(p.Action),
			p.Name,
			strconv.FormatFloat(p.Confidence, 'f', 2, 64),
			p.Reasoning,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteValidationMarkdown renders the validation harness report.
func WriteValidationMarkdown(w io.Writer, intentName string, passed bool, verdict string, recall, precision, cohesion float64, proposedName string) error {
	var sb strings.Builder

	sb.WriteString("# Validation Report\n\n")
	outcome := "FAIL"
	if passed {
		outcome = "PASS"
	}
	fmt.Fprintf(&sb, "- Outcome: **%s** (%s)\n", outcome, verdict)
	fmt.Fprintf(&sb, "- Hidden intent: %s\n", intentName)
	fmt.Fprintf(&sb, "- Recall (recovery rate): %.1f%%\n", recall*100)
	fmt.Fprintf(&sb, "- Precision (purity): %.1f%%\n", precision*100)
	fmt.Fprintf(&sb, "- Cluster cohesion: %.3f\n", cohesion)
	if proposedName != "" {
		fmt.Fprintf(&sb, "- Proposed as: %s\n", proposedName)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
