// Package parser extracts plain text and page boundaries from PDF and Word
// documents. Formats are a closed set dispatched by a format tag derived from
// the file extension.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/factory-kb/etl-service/internal/core"
)

// Format identifies a supported document format.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatDocx    Format = "docx"
	FormatUnknown Format = "unknown"
)

// FormatFromFileName derives the format tag from the file extension,
// case-insensitively.
func FormatFromFileName(fileName string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), ".")) {
	case "pdf":
		return FormatPDF
	case "docx":
		return FormatDocx
	default:
		return FormatUnknown
	}
}

// ContentType returns the MIME type stored alongside the raw upload.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// DocumentParser implements core.Parser over the supported formats.
type DocumentParser struct{}

// New creates a document parser.
func New() *DocumentParser {
	return &DocumentParser{}
}

var _ core.Parser = (*DocumentParser)(nil)

// Parse extracts text from the raw bytes according to the file's format tag.
func (p *DocumentParser) Parse(fileBytes []byte, fileName string) (*core.ParsedDocument, error) {
	switch FormatFromFileName(fileName) {
	case FormatPDF:
		return parsePDF(fileBytes, fileName)
	case FormatDocx:
		return parseDocx(fileBytes, fileName)
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}
