package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and splits on punctuation",
			input: "Cleaning-Agents, approved? YES",
			want:  []string{"cleaning", "agents", "approved", "yes"},
		},
		{
			name:  "drops stopwords and single chars",
			input: "what is the pH of the buffer",
			want:  []string{"ph", "buffer"},
		},
		{
			name:  "keeps digits",
			input: "SOP-021 section 5.2",
			want:  []string{"sop", "021", "section"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.input))
		})
	}
}

func TestKeywordScore(t *testing.T) {
	tests := []struct {
		name  string
		query []string
		text  string
		want  float64
	}{
		{
			name:  "full coverage",
			query: []string{"cleaning", "agents"},
			text:  "Approved cleaning agents are listed in appendix B.",
			want:  1.0,
		},
		{
			name:  "half coverage",
			query: []string{"cleaning", "validation"},
			text:  "Approved cleaning agents are listed in appendix B.",
			want:  0.5,
		},
		{
			name:  "no overlap",
			query: []string{"autoclave"},
			text:  "Approved cleaning agents are listed in appendix B.",
			want:  0,
		},
		{
			name:  "duplicate query tokens counted once",
			query: []string{"cleaning", "cleaning"},
			text:  "cleaning procedure",
			want:  1.0,
		},
		{
			name:  "empty query",
			query: nil,
			text:  "anything",
			want:  0,
		},
		{
			name:  "empty text",
			query: []string{"cleaning"},
			text:  "",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, keywordScore(tt.query, tt.text), 1e-9)
		})
	}
}
