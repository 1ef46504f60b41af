package ingestion

import (
	"regexp"
	"strings"

	"fasa-rag-api/internal/application/retrieval"
)

// sectionHeaderRe 匹配编号章节标题，如 "5.2 Cleaning Agents"。
var sectionHeaderRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+([A-Z].*)$`)

// markdownHeaderRe 匹配 Markdown 标题（.md 格式的 SOP）。
var markdownHeaderRe = regexp.MustCompile(`^#{1,6}\s+(.+)$`)

// PageText 单页已清洗文本。
type PageText struct {
	Number int
	Text   string
}

// SplitSections 按编号标题把多页文本切分为章节。
// 标题前的导言归入一个无编号章节；章节的页码取其标题所在页。
func SplitSections(pages []PageText) []retrieval.Section {
	sections := make([]retrieval.Section, 0, 16)

	var cur *retrieval.Section
	var body []string

	flush := func() {
		if cur == nil {
			return
		}
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" {
			cur.Text = text
			sections = append(sections, *cur)
		}
		cur = nil
		body = nil
	}

	for _, page := range pages {
		for _, line := range strings.Split(page.Text, "\n") {
			trimmed := strings.TrimSpace(line)
			if m := sectionHeaderRe.FindStringSubmatch(trimmed); m != nil {
				flush()
				cur = &retrieval.Section{
					Number: m[1],
					Title:  strings.TrimSpace(m[2]),
					Page:   page.Number,
				}
				continue
			}
			if m := markdownHeaderRe.FindStringSubmatch(trimmed); m != nil {
				// Markdown 标题本身可能带编号，复用编号解析
				flush()
				title := strings.TrimSpace(m[1])
				cur = &retrieval.Section{Title: title, Page: page.Number}
				if hm := sectionHeaderRe.FindStringSubmatch(title); hm != nil {
					cur.Number = hm[1]
					cur.Title = strings.TrimSpace(hm[2])
				}
				continue
			}
			if cur == nil {
				// 第一个标题之前的导言
				cur = &retrieval.Section{Page: page.Number}
			}
			body = append(body, line)
		}
	}
	flush()

	return sections
}

// SectionTitles 提取章节标题列表（跳过无标题的导言）。
func SectionTitles(sections []retrieval.Section) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		if s.Number != "" {
			out = append(out, s.Number+" "+s.Title)
		} else {
			out = append(out, s.Title)
		}
	}
	return out
}
