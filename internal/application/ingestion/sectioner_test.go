package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSections(t *testing.T) {
	pages := []PageText{
		{Number: 1, Text: "This SOP covers cleaning of vessel V-100.\n1. Purpose\nDefines the cleaning procedure.\n2. Scope\nApplies to production suite A."},
		{Number: 2, Text: "2.1 Exclusions\nDoes not cover CIP skids.\n5.2 Cleaning Agents\nOnly approved agents may be used."},
	}

	sections := SplitSections(pages)
	require.Len(t, sections, 5)

	// 第一个标题之前的导言作为无编号章节保留
	assert.Equal(t, "", sections[0].Number)
	assert.Equal(t, 1, sections[0].Page)
	assert.Contains(t, sections[0].Text, "V-100")

	assert.Equal(t, "1", sections[1].Number)
	assert.Equal(t, "Purpose", sections[1].Title)
	assert.Equal(t, 1, sections[1].Page)

	assert.Equal(t, "2", sections[2].Number)
	assert.Equal(t, "Scope", sections[2].Title)

	assert.Equal(t, "2.1", sections[3].Number)
	assert.Equal(t, "Exclusions", sections[3].Title)
	assert.Equal(t, 2, sections[3].Page)

	assert.Equal(t, "5.2", sections[4].Number)
	assert.Equal(t, "Cleaning Agents", sections[4].Title)
	assert.Equal(t, "Only approved agents may be used.", sections[4].Text)
}

func TestSplitSectionsSpansPages(t *testing.T) {
	pages := []PageText{
		{Number: 1, Text: "3. Responsibilities\nQA reviews all records."},
		{Number: 2, Text: "Production executes the procedure."},
	}

	sections := SplitSections(pages)
	require.Len(t, sections, 1)
	assert.Equal(t, "3", sections[0].Number)
	assert.Equal(t, 1, sections[0].Page)
	assert.Contains(t, sections[0].Text, "QA reviews")
	assert.Contains(t, sections[0].Text, "Production executes")
}

func TestSplitSectionsNoHeaders(t *testing.T) {
	pages := []PageText{{Number: 1, Text: "Just a plain paragraph."}}

	sections := SplitSections(pages)
	require.Len(t, sections, 1)
	assert.Equal(t, "", sections[0].Number)
	assert.Equal(t, "Just a plain paragraph.", sections[0].Text)
}

func TestSplitSectionsEmptySectionDropped(t *testing.T) {
	pages := []PageText{{Number: 1, Text: "1. Purpose\n2. Scope\nApplies to suite A."}}

	sections := SplitSections(pages)
	// "1. Purpose" 没有正文，被丢弃
	require.Len(t, sections, 1)
	assert.Equal(t, "2", sections[0].Number)
}

func TestSplitSectionsMarkdownHeaders(t *testing.T) {
	pages := []PageText{
		{Number: 1, Text: "# Gowning Procedure\nIntro paragraph.\n## 2.1 Grade B Entry\nDon sterile gown."},
	}

	sections := SplitSections(pages)
	require.Len(t, sections, 2)

	assert.Equal(t, "", sections[0].Number)
	assert.Equal(t, "Gowning Procedure", sections[0].Title)
	assert.Equal(t, "Intro paragraph.", sections[0].Text)

	// Markdown 标题自带编号时照常解析
	assert.Equal(t, "2.1", sections[1].Number)
	assert.Equal(t, "Grade B Entry", sections[1].Title)
}

func TestSectionTitles(t *testing.T) {
	pages := []PageText{
		{Number: 1, Text: "intro text\n1. Purpose\nbody\n5.2 Cleaning Agents\nbody"},
	}
	titles := SectionTitles(SplitSections(pages))
	assert.Equal(t, []string{"1 Purpose", "5.2 Cleaning Agents"}, titles)
}
