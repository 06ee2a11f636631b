package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Oracle proposal verdicts. EXISTING is an oracle-level verdict only; the
// synthesizer maps it to a MERGE against the named entry.
const (
	VerdictNew      = "NEW"
	VerdictSplit    = "SPLIT"
	VerdictExisting = "EXISTING"
)

// ProposalResponse is the parsed oracle response for one cluster.
type ProposalResponse struct {
	Proposal    string  `json:"proposal"`
	IntentName  string  `json:"intent_name"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// extractJSON extracts the first valid JSON object from a string that may
// contain extra text. This handles cases where LLMs add explanations or
// markdown fences around the JSON despite instructions.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // no JSON found, return as-is and let the parser fail
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // no complete JSON object found
}

// ParseProposalResponse parses and validates the oracle's proposal JSON.
// It enforces the documented response contract: all required fields present,
// a recognized verdict, and confidence within [0, 1]. Any violation returns
// an error; the caller treats that as a permanent (non-retryable) failure.
func ParseProposalResponse(raw string) (*ProposalResponse, error) {
	cleanJSON := extractJSON(raw)

	var resp ProposalResponse
	if err := json.Unmarshal([]byte(cleanJSON), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse proposal JSON: %w", err)
	}

	resp.Proposal = strings.ToUpper(strings.TrimSpace(resp.Proposal))
	switch resp.Proposal {
	case VerdictNew, VerdictSplit, VerdictExisting:
	default:
		return nil, fmt.Errorf("invalid proposal verdict: %q (must be NEW, SPLIT, or EXISTING)", resp.Proposal)
	}

	if strings.TrimSpace(resp.IntentName) == "" {
		return nil, fmt.Errorf("proposal is missing intent_name")
	}
	if strings.TrimSpace(resp.Description) == "" {
		return nil, fmt.Errorf("proposal is missing description")
	}
	if resp.Confidence < 0.0 || resp.Confidence > 1.0 {
		return nil, fmt.Errorf("invalid confidence score: %f (must be 0.0-1.0)", resp.Confidence)
	}

	return &resp, nil
}
