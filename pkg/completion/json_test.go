package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "bare object",
			raw:  `{"isComplete": true}`,
			want: `{"isComplete": true}`,
		},
		{
			name: "json code fence",
			raw:  "```json\n{\"isComplete\": false}\n```",
			want: `{"isComplete": false}`,
		},
		{
			name: "plain code fence",
			raw:  "```\n{\"asset\": \"text\"}\n```",
			want: `{"asset": "text"}`,
		},
		{
			name: "surrounding prose",
			raw:  "Sure! Here is the result:\n{\"isComplete\": true}\nLet me know if you need more.",
			want: `{"isComplete": true}`,
		},
		{
			name: "nested object",
			raw:  `{"collectedInformation": {"companyName": "Acme"}, "isComplete": false}`,
			want: `{"collectedInformation": {"companyName": "Acme"}, "isComplete": false}`,
		},
		{
			name: "braces inside strings",
			raw:  `{"nextQuestion": "What does {company} do?"}`,
			want: `{"nextQuestion": "What does {company} do?"}`,
		},
		{
			name:    "no object at all",
			raw:     "I could not determine anything from that.",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			raw:     `{"isComplete": true`,
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSONObject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeObject(t *testing.T) {
	var out struct {
		IsComplete bool `json:"isComplete"`
	}
	err := DecodeObject("```json\n{\"isComplete\": true}\n```", &out)
	require.NoError(t, err)
	assert.True(t, out.IsComplete)

	err = DecodeObject("gibberish", &out)
	assert.ErrorIs(t, err, ErrNoJSONObject)
}
