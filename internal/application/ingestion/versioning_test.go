package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantDocName string
		wantVersion string
	}{
		{"SOP-021_CIP_v2.1.pdf", "SOP-021_CIP", "2.1"},
		{"SOP-021_CIP_V3.pdf", "SOP-021_CIP", "3"},
		{"/library/SOP-007_Gowning_v1.0.pdf", "SOP-007_Gowning", "1.0"},
		{"SOP-100_NoVersion.pdf", "SOP-100_NoVersion", "1"},
		{"plain.txt", "plain", "1"},
		{"weird_v.pdf", "weird_v", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			docName, version := ParseFilename(tt.filename)
			assert.Equal(t, tt.wantDocName, docName)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1", "2", -1},
		{"2.1", "2.0", 1},
		{"2.1", "2.1", 0},
		{"10", "9.9", 1},
		// 分段数值比较，不能按小数解析
		{"2.10", "2.9", 1},
		{"1.10", "1.2", 1},
		{"2.0.1", "2.0", 1},
		{"garbage", "1", -1},
		{"garbage", "junk", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b), "CompareVersions(%q, %q)", tt.a, tt.b)
	}
}
