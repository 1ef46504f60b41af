package retrieval

import (
	"fmt"
	"strings"
)

// NotFoundSentinel 当上下文不足以回答时模型必须返回的固定答复。
const NotFoundSentinel = "Information not found in the current SOPs."

// SystemPrompt 严格限定模型只使用召回上下文作答。
const SystemPrompt = `You are a quality assurance assistant for a pharmaceutical manufacturing site. Answer questions strictly and only from the SOP excerpts provided in the context. Cite the excerpts you used by their bracketed numbers, e.g. [1]. Do not use any outside knowledge. If the context does not contain the answer, reply exactly: "` + NotFoundSentinel + `"`

// BuildPromptContext 将召回结果格式化为可直接注入 Prompt 的块。
// 约束：尽量短，避免把 score 等调试信息塞进 Prompt。
func BuildPromptContext(passages []Passage, maxPassages int, maxRunesPerPassage int) string {
	if len(passages) == 0 {
		return ""
	}
	if maxPassages <= 0 {
		maxPassages = 10
	}
	if maxRunesPerPassage <= 0 {
		maxRunesPerPassage = 800
	}

	n := len(passages)
	if n > maxPassages {
		n = maxPassages
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := passages[i]
		txt := compactOneLine(p.Text)
		txt = truncateRunes(txt, maxRunesPerPassage)
		if strings.TrimSpace(txt) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%d] (%s) %s", i+1, FormatCitation(p), txt))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// BuildUserPrompt 组合上下文与用户问题。
func BuildUserPrompt(contextBlock, question string) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	if strings.TrimSpace(contextBlock) == "" {
		sb.WriteString("(no relevant excerpts found)\n")
	} else {
		sb.WriteString(contextBlock)
		sb.WriteString("\n")
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(strings.TrimSpace(question))
	return sb.String()
}

// FormatCitation 生成引用标签，如 "SOP-021 v2.1, p.4, §5.2 Cleaning Agents"。
func FormatCitation(p Passage) string {
	var sb strings.Builder
	sb.WriteString(p.DocName)
	if v := strings.TrimSpace(p.Version); v != "" {
		sb.WriteString(" v")
		sb.WriteString(v)
	}
	if p.Page > 0 {
		sb.WriteString(fmt.Sprintf(", p.%d", p.Page))
	}
	if num := strings.TrimSpace(p.SectionNumber); num != "" {
		sb.WriteString(", §")
		sb.WriteString(num)
		if t := strings.TrimSpace(p.SectionTitle); t != "" {
			sb.WriteString(" ")
			sb.WriteString(t)
		}
	} else if t := strings.TrimSpace(p.SectionTitle); t != "" {
		sb.WriteString(", §")
		sb.WriteString(t)
	}
	return sb.String()
}

func compactOneLine(s string) string {
	out := strings.ReplaceAll(s, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = strings.ReplaceAll(out, "\n", " ")
	out = strings.TrimSpace(out)
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return out
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}
