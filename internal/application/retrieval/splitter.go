package retrieval

import "strings"

// splitByRunes 把超长的 SOP 章节文本按字符数切成重叠窗口。
// 按 rune 计数，避免在多字节字符中间截断；重叠部分保证
// 跨窗口的步骤描述在相邻分块中都能被召回。
func splitByRunes(s string, maxRunes int, overlapRunes int) []string {
	text := strings.TrimSpace(s)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 {
		return []string{text}
	}
	if overlapRunes < 0 {
		overlapRunes = 0
	}

	runes := []rune(text)
	if len(runes) <= maxRunes {
		return []string{text}
	}

	// 重叠不小于窗口时退化为不重叠，否则步长为 0 死循环
	step := maxRunes - overlapRunes
	if step <= 0 {
		step = maxRunes
	}

	chunks := make([]string, 0, (len(runes)/step)+1)
	for start := 0; start < len(runes); start += step {
		end := start + maxRunes
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
