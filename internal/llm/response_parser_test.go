package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProposalResponse_CleanJSON(t *testing.T) {
	raw := `{
		"proposal": "NEW",
		"intent_name": "Partnerships > B2B Inquiry",
		"description": "User wants a business partnership or reseller relationship",
		"confidence": 0.9,
		"reasoning": "Messages consistently ask about collaboration and distribution."
	}`

	resp, err := ParseProposalResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, VerdictNew, resp.Proposal)
	assert.Equal(t, "Partnerships > B2B Inquiry", resp.IntentName)
	assert.Equal(t, 0.9, resp.Confidence)
}

func TestParseProposalResponse_MarkdownFences(t *testing.T) {
	raw := "```json\n{\"proposal\":\"SPLIT\",\"intent_name\":\"Returns > Damaged Item\",\"description\":\"Refund requests specifically about damaged goods\",\"confidence\":0.7,\"reasoning\":\"Sub-topic of Returns.\"}\n```"

	resp, err := ParseProposalResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, VerdictSplit, resp.Proposal)
}

func TestParseProposalResponse_SurroundingProse(t *testing.T) {
	raw := `Sure! Here is the analysis you asked for:
{"proposal":"EXISTING","intent_name":"Order Status","description":"Tracking questions","confidence":0.8,"reasoning":"Matches the existing intent."}
Let me know if you need anything else.`

	resp, err := ParseProposalResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, VerdictExisting, resp.Proposal)
	assert.Equal(t, "Order Status", resp.IntentName)
}

func TestParseProposalResponse_BracesInsideStrings(t *testing.T) {
	raw := `{"proposal":"NEW","intent_name":"API Errors","description":"Users pasting {code} blocks with } braces","confidence":0.6,"reasoning":"ok"}`

	resp, err := ParseProposalResponse(raw)
	require.NoError(t, err)
	assert.Contains(t, resp.Description, "{code}")
}

func TestParseProposalResponse_VerdictNormalized(t *testing.T) {
	raw := `{"proposal":" new ","intent_name":"X","description":"d","confidence":0.5,"reasoning":"r"}`

	resp, err := ParseProposalResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, VerdictNew, resp.Proposal)
}

func TestParseProposalResponse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "the cluster looks like a new intent to me"},
		{"truncated", `{"proposal":"NEW","intent_name":"X"`},
		{"unknown verdict", `{"proposal":"MAYBE","intent_name":"X","description":"d","confidence":0.5,"reasoning":"r"}`},
		{"missing name", `{"proposal":"NEW","intent_name":"","description":"d","confidence":0.5,"reasoning":"r"}`},
		{"missing description", `{"proposal":"NEW","intent_name":"X","description":"","confidence":0.5,"reasoning":"r"}`},
		{"confidence out of range", `{"proposal":"NEW","intent_name":"X","description":"d","confidence":1.2,"reasoning":"r"}`},
		{"negative confidence", `{"proposal":"NEW","intent_name":"X","description":"d","confidence":-0.1,"reasoning":"r"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProposalResponse(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	assert.Equal(t, "plain text", extractJSON("plain text"))
}
