package retrieval

import (
	"strings"
	"unicode"
)

// stopwords 关键词打分时忽略的高频词
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "how": {}, "in": {},
	"is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"to": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "with": {},
}

// tokenize 将文本切分为小写词元，过滤停用词和单字符词。
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

// keywordScore 计算查询词元在段落中的覆盖率，范围 [0, 1]。
func keywordScore(queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := tokenize(text)
	if len(textTokens) == 0 {
		return 0
	}
	present := make(map[string]struct{}, len(textTokens))
	for _, t := range textTokens {
		present[t] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryTokens))
	matched := 0
	total := 0
	for _, q := range queryTokens {
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		total++
		if _, ok := present[q]; ok {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}
