// Package ingestion 实现 SOP 文档的装载、清洗、分节与入库流程
package ingestion

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// filenameVersionRe 匹配形如 "SOP-021_CIP_v2.1" 的文件名，
// 捕获文档名与版本号。
var filenameVersionRe = regexp.MustCompile(`^(.*)_[vV](\d+(?:\.\d+)?)$`)

// ParseFilename 从文件名解析文档名和版本号。
// 无版本后缀时版本默认为 "1"。
func ParseFilename(filename string) (docName, version string) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	m := filenameVersionRe.FindStringSubmatch(base)
	if m == nil {
		return base, "1"
	}
	return m[1], m[2]
}

// CompareVersions 按点号分段数值比较两个版本号，保证 "2.10" > "2.9"。
// 返回值：a<b 为 -1，a==b 为 0，a>b 为 1。无法解析的分段视为 0。
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}
