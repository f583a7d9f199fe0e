package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factory-kb/etl-service/internal/core"
)

func TestFormatFromFileName(t *testing.T) {
	tests := []struct {
		fileName string
		want     Format
	}{
		{"manual.pdf", FormatPDF},
		{"MANUAL.PDF", FormatPDF},
		{"report.docx", FormatDocx},
		{"report.DOCX", FormatDocx},
		{"legacy.doc", FormatUnknown},
		{"notes.txt", FormatUnknown},
		{"archive.tar.gz", FormatUnknown},
		{"noextension", FormatUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFromFileName(tt.fileName), tt.fileName)
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	p := New()

	_, err := p.Parse([]byte("plain text"), "notes.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))
}

func TestParse_CorruptPDF(t *testing.T) {
	p := New()

	_, err := p.Parse([]byte("definitely not a pdf"), "broken.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrParseFailure))
}

func TestParse_CorruptDocx(t *testing.T) {
	p := New()

	_, err := p.Parse([]byte("definitely not a zip"), "broken.docx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrParseFailure))
}

const docxDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading1"/></w:pPr>
      <w:r><w:t>作業手順</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:t>最初の手順を</w:t></w:r>
      <w:r><w:t>説明します。</w:t></w:r>
    </w:p>
    <w:p/>
    <w:p>
      <w:r><w:t>次のセクションです。</w:t></w:r>
    </w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>項目</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>値</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>温度</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>200</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestParse_Docx(t *testing.T) {
	p := New()

	doc, err := p.Parse(buildDocx(t, docxDocumentXML), "procedure.docx")
	require.NoError(t, err)

	assert.Equal(t, "docx", doc.FileType)
	assert.Contains(t, doc.Text, "## 作業手順")
	assert.Contains(t, doc.Text, "最初の手順を説明します。")
	assert.Contains(t, doc.Text, "次のセクションです。")

	// Table rendered as markdown with a separator after the header row.
	assert.Contains(t, doc.Text, "| 項目 | 値 |")
	assert.Contains(t, doc.Text, "| --- | --- |")
	assert.Contains(t, doc.Text, "| 温度 | 200 |")

	// Heading starts a new section, blank paragraph starts another, table is
	// its own section.
	assert.Equal(t, 3, doc.PageCount)
	require.Len(t, doc.Pages, 3)
	assert.Contains(t, doc.Pages[0], "## 作業手順")
}

func TestParse_DocxMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	p := New()
	_, err = p.Parse(buf.Bytes(), "empty.docx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrParseFailure))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		FormatDocx.ContentType())
	assert.Equal(t, "application/octet-stream", FormatUnknown.ContentType())
}
