package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/factory-kb/etl-service/internal/core"
)

func boolPtr(b bool) *bool { return &b }

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name   string
		filter *core.SearchFilter
		want   string
	}{
		{
			name:   "nil filter",
			filter: nil,
			want:   "",
		},
		{
			name:   "empty filter",
			filter: &core.SearchFilter{},
			want:   "",
		},
		{
			name:   "is_latest only",
			filter: &core.SearchFilter{IsLatest: boolPtr(true)},
			want:   `is_latest == true`,
		},
		{
			name:   "is_latest false",
			filter: &core.SearchFilter{IsLatest: boolPtr(false)},
			want:   `is_latest == false`,
		},
		{
			name:   "single document type",
			filter: &core.SearchFilter{DocumentTypes: []string{"manual"}},
			want:   `document_type == "manual"`,
		},
		{
			name:   "multiple document types",
			filter: &core.SearchFilter{DocumentTypes: []string{"manual", "report"}},
			want:   `document_type in ["manual", "report"]`,
		},
		{
			name:   "department only",
			filter: &core.SearchFilter{Department: "製造部"},
			want:   `department == "製造部"`,
		},
		{
			name: "all conditions combined",
			filter: &core.SearchFilter{
				IsLatest:      boolPtr(true),
				DocumentTypes: []string{"manual"},
				Department:    "quality",
			},
			want: `is_latest == true and document_type == "manual" and department == "quality"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterExpr(tt.filter))
		})
	}
}

func TestFilterExpr_EscapesQuotes(t *testing.T) {
	expr := FilterExpr(&core.SearchFilter{Department: `eng"ineering`})
	assert.Equal(t, `department == "eng\"ineering"`, expr)
}
