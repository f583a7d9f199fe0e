package rag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/factory-kb/etl-service/internal/core"
)

// FilterExpr translates a search filter into a Milvus boolean expression.
// Conditions are joined with "and"; a nil or empty filter yields "".
func FilterExpr(filter *core.SearchFilter) string {
	if filter == nil {
		return ""
	}

	var conditions []string

	if filter.IsLatest != nil {
		conditions = append(conditions, fmt.Sprintf("%s == %t", FieldIsLatest, *filter.IsLatest))
	}

	switch len(filter.DocumentTypes) {
	case 0:
	case 1:
		conditions = append(conditions,
			fmt.Sprintf("%s == %s", FieldDocumentType, quote(filter.DocumentTypes[0])))
	default:
		quoted := make([]string, len(filter.DocumentTypes))
		for i, dt := range filter.DocumentTypes {
			quoted[i] = quote(dt)
		}
		conditions = append(conditions,
			fmt.Sprintf("%s in [%s]", FieldDocumentType, strings.Join(quoted, ", ")))
	}

	if filter.Department != "" {
		conditions = append(conditions,
			fmt.Sprintf("%s == %s", FieldDepartment, quote(filter.Department)))
	}

	return strings.Join(conditions, " and ")
}

// quote produces a double-quoted string literal with backslash escapes, which
// is what the Milvus expression parser expects for string values.
func quote(s string) string {
	return strconv.Quote(s)
}
