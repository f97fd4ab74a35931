package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchResponse(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		n         int
		wantLen   int
		wantErr   bool
		wantFirst Suggestion
	}{
		{
			name:    "plain array",
			content: `[{"index":1,"category":"Groceries","confidence":0.9,"reasoning":"weekly shop"}]`,
			n:       1,
			wantLen: 1,
			wantFirst: Suggestion{
				Index: 1, CategoryName: "Groceries", Confidence: 0.9, Reasoning: "weekly shop",
			},
		},
		{
			name: "markdown fenced",
			content: "```json\n" +
				`[{"index":1,"category":"Shopping","confidence":0.7,"reasoning":"online order"}]` +
				"\n```",
			n:       1,
			wantLen: 1,
			wantFirst: Suggestion{
				Index: 1, CategoryName: "Shopping", Confidence: 0.7, Reasoning: "online order",
			},
		},
		{
			name:    "prose around the array",
			content: `Here are the categorizations: [{"index":1,"category":"Utilities","confidence":0.8,"reasoning":"bill"}] Hope this helps!`,
			n:       1,
			wantLen: 1,
			wantFirst: Suggestion{
				Index: 1, CategoryName: "Utilities", Confidence: 0.8, Reasoning: "bill",
			},
		},
		{
			name: "out-of-range indexes dropped",
			content: `[
				{"index":0,"category":"Groceries","confidence":0.9},
				{"index":1,"category":"Shopping","confidence":0.7},
				{"index":5,"category":"Utilities","confidence":0.8}
			]`,
			n:       2,
			wantLen: 1,
			wantFirst: Suggestion{
				Index: 1, CategoryName: "Shopping", Confidence: 0.7,
			},
		},
		{
			name:    "confidence clamped",
			content: `[{"index":1,"category":"Shopping","confidence":1.7}]`,
			n:       1,
			wantLen: 1,
			wantFirst: Suggestion{
				Index: 1, CategoryName: "Shopping", Confidence: 1.0,
			},
		},
		{
			name:    "empty category dropped making response unusable",
			content: `[{"index":1,"category":"","confidence":0.9}]`,
			n:       1,
			wantErr: true,
		},
		{
			name:    "no array",
			content: `I cannot categorize these transactions.`,
			n:       1,
			wantErr: true,
		},
		{
			name:    "malformed json",
			content: `[{"index":1,"category":"Groceries",]`,
			n:       1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBatchResponse(tt.content, tt.n)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantFirst, got[0])
		})
	}
}
