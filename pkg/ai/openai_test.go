package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "plain object",
			content: `{"verdict":"Yes"}`,
			want:    `{"verdict":"Yes"}`,
		},
		{
			name:    "fenced json",
			content: "```json\n{\"verdict\":\"No\"}\n```",
			want:    `{"verdict":"No"}`,
		},
		{
			name:    "surrounding prose",
			content: "Here is the answer:\n{\"verdict\":\"Partial\"}\nHope that helps.",
			want:    `{"verdict":"Partial"}`,
		},
		{
			name:    "no object",
			content: "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "broken object",
			content: `{"verdict": `,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := extractJSON(tc.content)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(raw))
		})
	}
}

func TestClassifyCallError(t *testing.T) {
	deadline := fmt.Errorf("request: %w", context.DeadlineExceeded)
	require.ErrorIs(t, classifyCallError(deadline), ErrTimeout)

	canceled := fmt.Errorf("request: %w", context.Canceled)
	require.ErrorIs(t, classifyCallError(canceled), ErrTimeout)

	generic := fmt.Errorf("connection refused")
	require.ErrorIs(t, classifyCallError(generic), ErrTransport)
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(fmt.Errorf("call: %w", ErrTimeout)))
	require.True(t, Retryable(fmt.Errorf("call: %w", ErrTransport)))
	require.False(t, Retryable(fmt.Errorf("call: %w", ErrMalformedReply)))
	require.False(t, Retryable(nil))
}

func TestSchemaValidate(t *testing.T) {
	schema := MustCompileSchema("answer", `{
		"type": "object",
		"required": ["verdict", "confidence"],
		"properties": {
			"verdict": {"type": "string", "enum": ["Yes", "No", "Partial"]},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`)

	require.NoError(t, schema.Validate([]byte(`{"verdict":"Yes","confidence":0.9}`)))
	require.Error(t, schema.Validate([]byte(`{"verdict":"Maybe","confidence":0.9}`)))
	require.Error(t, schema.Validate([]byte(`{"verdict":"Yes","confidence":1.4}`)))
	require.Error(t, schema.Validate([]byte(`{"confidence":0.9}`)))
	require.Error(t, schema.Validate([]byte(`not json`)))
}
