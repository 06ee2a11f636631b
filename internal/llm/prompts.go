// Package llm provides the reasoning-oracle and embedding clients for the
// discovery pipeline. It includes strict JSON-only prompt templates and
// response parsers that work with Ollama, OpenAI, and Anthropic models.
package llm

import (
	"fmt"
	"strings"
)

// ProposalPrompt generates a strict JSON-only prompt asking the oracle to
// judge one message cluster against the current intent map.
//
// Parameters:
//   - intentMap: flattened intent-map reference ("- [Primary > Secondary]: desc" lines)
//   - samples: representative messages from the cluster, centroid-nearest first
//   - size: total cluster size (usually larger than len(samples))
//
// Returns a prompt string that will elicit JSON-only responses from the LLM.
func ProposalPrompt(intentMap string, samples []string, size int) string {
	var sb strings.Builder
	for _, s := range samples {
		sb.WriteString("- ")
		sb.WriteString(s)
		sb.WriteString("\n")
	}

	return fmt.Sprintf(`TASK: You are a data taxonomist. Analyze this cluster of user messages against the current intent map.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

CURRENT INTENT MAP:
%s

CLUSTER SAMPLES (cluster size: %d):
%s
DECIDE whether this cluster represents:
1. NEW: a completely missing intent.
2. SPLIT: a specific sub-topic that deserves to be separated from one broad existing intent.
3. EXISTING: fits an existing intent from the map.

REQUIRED JSON STRUCTURE:
Your response MUST start with { and end with }
Each field is REQUIRED.

Example structure (EXACT FORMAT REQUIRED):
{
  "proposal": "NEW",
  "intent_name": "Primary Group > Specific Intent",
  "description": "One-sentence description of the user goal",
  "confidence": 0.85,
  "reasoning": "A short, sharp 2-sentence explanation."
}

RULES:
- "proposal" MUST be exactly "NEW", "SPLIT", or "EXISTING".
- For SPLIT or EXISTING, "intent_name" MUST name the existing intent involved.
- "confidence" MUST be a number between 0.0 and 1.0.`, intentMap, size, sb.String())
}
