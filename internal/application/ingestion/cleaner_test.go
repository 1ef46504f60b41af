package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips page footer",
			input: "Use only approved agents.\nPage 3 of 12\nRinse thoroughly.",
			want:  "Use only approved agents.\nRinse thoroughly.",
		},
		{
			name:  "strips confidential watermark",
			input: "CONFIDENTIAL - Internal Use Only\nProcedure starts here.",
			want:  "Procedure starts here.",
		},
		{
			name:  "strips inline watermark token",
			input: "Rinse the CONFIDENTIAL vessel with WFI.\nThe confidentiality clause is unrelated.",
			want:  "Rinse the vessel with WFI.\nThe confidentiality clause is unrelated.",
		},
		{
			name:  "strips document metadata lines",
			input: "Document No.: QA-SOP-021\nRevision: 2.1\nEffective Date: 2024-01-01\nScope of this SOP.",
			want:  "Scope of this SOP.",
		},
		{
			name:  "strips separators and uncontrolled-copy notices",
			input: "----------\nUncontrolled when printed\nActual content.",
			want:  "Actual content.",
		},
		{
			name:  "collapses blank lines and inner spaces",
			input: "First   line.\n\n\n\nSecond  line.",
			want:  "First line.\n\nSecond line.",
		},
		{
			name:  "leading blank lines dropped",
			input: "\n\n\nContent.",
			want:  "Content.",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}
