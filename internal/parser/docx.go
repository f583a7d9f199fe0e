package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/factory-kb/etl-service/internal/core"
)

// documentXML mirrors the parts of word/document.xml we read. Tables are
// collected separately from paragraphs and appended after the running text,
// converted to markdown.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []docxTable     `xml:"tbl"`
	} `xml:"body"`
}

type docxParagraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

// parseDocx extracts text from a Word document. Paragraphs styled as headings
// become markdown headings so the chunker can detect section boundaries; blank
// paragraphs delimit "pages" (sections) for the page breakdown.
func parseDocx(fileBytes []byte, fileName string) (*core.ParsedDocument, error) {
	reader, err := zip.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %v", core.ErrParseFailure, err)
	}

	doc, err := readDocumentXML(reader)
	if err != nil {
		return nil, err
	}

	var paragraphs []string
	var pages []string
	var currentSection []string

	flushSection := func() {
		if len(currentSection) > 0 {
			pages = append(pages, strings.Join(currentSection, "\n"))
			currentSection = nil
		}
	}

	for _, para := range doc.Body.Paragraphs {
		text := strings.TrimSpace(paragraphText(para))
		if text == "" {
			flushSection()
			continue
		}

		if isHeadingStyle(para.Props.Style.Val) {
			flushSection()
			currentSection = append(currentSection, "## "+text)
			paragraphs = append(paragraphs, "## "+text)
		} else {
			currentSection = append(currentSection, text)
			paragraphs = append(paragraphs, text)
		}
	}
	flushSection()

	for _, table := range doc.Body.Tables {
		if md := tableToMarkdown(table); md != "" {
			paragraphs = append(paragraphs, md)
			pages = append(pages, md)
		}
	}

	return &core.ParsedDocument{
		Text:      strings.Join(paragraphs, "\n\n"),
		Pages:     pages,
		FileName:  fileName,
		FileType:  string(FormatDocx),
		PageCount: len(pages),
	}, nil
}

func readDocumentXML(reader *zip.Reader) (*documentXML, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrParseFailure, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrParseFailure, err)
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrParseFailure, err)
		}
		return &doc, nil
	}
	return nil, fmt.Errorf("%w: word/document.xml missing", core.ErrParseFailure)
}

func paragraphText(para docxParagraph) string {
	var b strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

func isHeadingStyle(style string) bool {
	return strings.HasPrefix(style, "Heading") || strings.HasPrefix(style, "heading")
}

// tableToMarkdown renders a table as a markdown grid, treating the first row
// as the header.
func tableToMarkdown(table docxTable) string {
	var rows []string
	for i, row := range table.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			var parts []string
			for _, p := range cell.Paragraphs {
				if t := strings.TrimSpace(paragraphText(p)); t != "" {
					parts = append(parts, t)
				}
			}
			text := strings.ReplaceAll(strings.Join(parts, " "), "|", `\|`)
			cells = append(cells, text)
		}
		rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
		if i == 0 {
			seps := make([]string, len(cells))
			for j := range seps {
				seps[j] = "---"
			}
			rows = append(rows, "| "+strings.Join(seps, " | ")+" |")
		}
	}
	if len(rows) == 0 {
		return ""
	}
	return strings.Join(rows, "\n")
}
