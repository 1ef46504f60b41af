package ingestion

import (
	"regexp"
	"strings"
)

// noisePatterns 过滤 PDF 提取文本中的页眉页脚和水印噪音。
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^page\s+\d+\s+of\s+\d+$`),
	regexp.MustCompile(`(?i)^confidential.*$`),
	regexp.MustCompile(`(?i)^revision:.*$`),
	regexp.MustCompile(`(?i)^effective date:.*$`),
	regexp.MustCompile(`(?i)^document (no|number)[.:].*$`),
	regexp.MustCompile(`(?i)^uncontrolled (copy|when printed).*$`),
	regexp.MustCompile(`(?i)^printed copies are uncontrolled.*$`),
	regexp.MustCompile(`^[-_=]{3,}$`),
}

// inlineWatermarkRe 剔除混进正文行内的水印词（边界匹配，不伤及 "confidentiality" 等词）。
var inlineWatermarkRe = regexp.MustCompile(`(?i)\bconfidential\b`)

// CleanText 清洗单页文本：去掉噪音行、压缩空白。
func CleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// 连续空行压缩为一个
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		if isNoiseLine(trimmed) {
			continue
		}
		trimmed = strings.TrimSpace(inlineWatermarkRe.ReplaceAllString(trimmed, ""))
		if trimmed == "" {
			continue
		}
		blank = false
		out = append(out, collapseSpaces(trimmed))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isNoiseLine(line string) bool {
	for _, re := range noisePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}
