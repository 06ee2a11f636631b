package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("oracle call: %w", context.DeadlineExceeded), true},
		{"circuit open", ErrCircuitOpen, true},
		{"rate limited", &StatusError{Provider: "openai", Code: 429}, true},
		{"server error", &StatusError{Provider: "anthropic", Code: 503}, true},
		{"wrapped status", fmt.Errorf("call failed: %w", &StatusError{Provider: "ollama", Code: 500}), true},
		{"auth failure", &StatusError{Provider: "openai", Code: 401}, false},
		{"bad request", &StatusError{Provider: "openai", Code: 400}, false},
		{"parse failure", errors.New("failed to parse proposal JSON"), false},
		{"cancellation", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	err := &StatusError{Provider: "openai", Code: 429, Body: "slow down"}
	assert.Equal(t, "openai returned status 429: slow down", err.Error())
}
