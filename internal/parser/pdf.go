package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/factory-kb/etl-service/internal/core"
)

// parsePDF extracts text page by page. Pages without extractable text are
// skipped but do not fail the document.
func parsePDF(fileBytes []byte, fileName string) (*core.ParsedDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrParseFailure, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	return &core.ParsedDocument{
		Text:      strings.Join(pages, "\n\n"),
		Pages:     pages,
		FileName:  fileName,
		FileType:  string(FormatPDF),
		PageCount: len(pages),
	}, nil
}
