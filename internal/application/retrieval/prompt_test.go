package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCitation(t *testing.T) {
	tests := []struct {
		name    string
		passage Passage
		want    string
	}{
		{
			name: "full citation",
			passage: Passage{
				DocName:       "SOP-021",
				Version:       "2.1",
				Page:          4,
				SectionNumber: "5.2",
				SectionTitle:  "Cleaning Agents",
			},
			want: "SOP-021 v2.1, p.4, §5.2 Cleaning Agents",
		},
		{
			name: "no section number falls back to title",
			passage: Passage{
				DocName:      "SOP-007",
				Version:      "1.0",
				Page:         2,
				SectionTitle: "Scope",
			},
			want: "SOP-007 v1.0, p.2, §Scope",
		},
		{
			name:    "doc name only",
			passage: Passage{DocName: "SOP-100"},
			want:    "SOP-100",
		},
		{
			name: "zero page omitted",
			passage: Passage{
				DocName:       "SOP-001",
				Version:       "3.0",
				SectionNumber: "1",
			},
			want: "SOP-001 v3.0, §1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCitation(tt.passage))
		})
	}
}

func TestBuildPromptContext(t *testing.T) {
	passages := []Passage{
		{DocName: "SOP-021", Version: "2.1", Page: 4, SectionNumber: "5.2", SectionTitle: "Cleaning Agents", Text: "Only approved agents\nmay be used."},
		{DocName: "SOP-007", Version: "1.0", Page: 1, Text: "Scope of this procedure."},
	}

	block := BuildPromptContext(passages, 10, 800)
	lines := strings.Split(block, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[1] (SOP-021 v2.1, p.4, §5.2 Cleaning Agents) Only approved agents may be used.", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[2] (SOP-007 v1.0, p.1)"))
}

func TestBuildPromptContextLimits(t *testing.T) {
	passages := []Passage{
		{DocName: "A", Text: strings.Repeat("x", 100)},
		{DocName: "B", Text: "b"},
		{DocName: "C", Text: "c"},
	}

	block := BuildPromptContext(passages, 2, 10)
	lines := strings.Split(block, "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, block, "(C)")
	// 超长段落被截断并加省略号
	assert.Contains(t, lines[0], "…")
}

func TestBuildPromptContextEmpty(t *testing.T) {
	assert.Equal(t, "", BuildPromptContext(nil, 10, 800))
}

func TestBuildUserPrompt(t *testing.T) {
	t.Run("with context", func(t *testing.T) {
		got := BuildUserPrompt("[1] (SOP-021) text", "  What agents are approved?  ")
		assert.Contains(t, got, "Context:\n[1] (SOP-021) text")
		assert.True(t, strings.HasSuffix(got, "Question: What agents are approved?"))
	})

	t.Run("without context", func(t *testing.T) {
		got := BuildUserPrompt("", "anything")
		assert.Contains(t, got, "(no relevant excerpts found)")
	})
}

func TestSystemPromptContainsSentinel(t *testing.T) {
	assert.Contains(t, SystemPrompt, NotFoundSentinel)
}
