// Package chunker splits extracted document text into retrieval-sized
// passages. Boundary priority: heading > paragraph > sentence.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/factory-kb/etl-service/internal/core"
)

const (
	// DefaultChunkSize is the target passage size in characters.
	DefaultChunkSize = 512
	// DefaultChunkOverlap is the number of trailing characters carried into
	// the next chunk when a section is split.
	DefaultChunkOverlap = 64
)

// Config controls how documents are split.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// DefaultConfig returns the deployed chunking parameters.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

var (
	headingPattern   = regexp.MustCompile(`(?m)^#{1,4}\s+(.+)$`)
	paragraphPattern = regexp.MustCompile(`\n\s*\n`)
)

type section struct {
	heading string
	body    string
}

// Split chunks text with the given configuration. Blank or whitespace-only
// input produces no chunks. Chunk indexes are document-global: 0..n-1 with no
// gaps, never reset between sections.
func Split(text string, cfg Config) []core.Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []core.Chunk
	chunkIndex := 0

	for _, sec := range splitByHeadings(text) {
		var current []string
		currentLength := 0

		if sec.heading != "" {
			current = append(current, sec.heading)
			currentLength += utf8.RuneCountInString(sec.heading)
		}

		for _, unit := range splitByParagraphs(sec.body, cfg.ChunkSize) {
			unitLen := utf8.RuneCountInString(unit)

			if currentLength+unitLen > cfg.ChunkSize && len(current) > 0 {
				joined := strings.Join(current, "\n")
				chunks = append(chunks, core.Chunk{
					Text:      joined,
					Index:     chunkIndex,
					Heading:   sec.heading,
					CharCount: utf8.RuneCountInString(joined),
				})
				chunkIndex++

				// Seed the next buffer with the tail of the closed chunk.
				overlap := tailRunes(joined, cfg.ChunkOverlap)
				if overlap != "" {
					current = []string{overlap}
					currentLength = utf8.RuneCountInString(overlap)
				} else {
					current = nil
					currentLength = 0
				}
			}

			current = append(current, unit)
			currentLength += unitLen
		}

		if len(current) > 0 {
			joined := strings.Join(current, "\n")
			if strings.TrimSpace(joined) != "" {
				chunks = append(chunks, core.Chunk{
					Text:      joined,
					Index:     chunkIndex,
					Heading:   sec.heading,
					CharCount: utf8.RuneCountInString(joined),
				})
				chunkIndex++
			}
		}
	}

	return chunks
}

// splitByHeadings cuts text at markdown heading lines (1-4 leading '#'). Text
// before the first heading becomes a section with an empty heading. A heading
// applies to everything up to the next heading.
func splitByHeadings(text string) []section {
	matches := headingPattern.FindAllStringSubmatchIndex(text, -1)

	var sections []section
	lastEnd := 0
	lastHeading := ""

	for _, m := range matches {
		if m[0] > lastEnd {
			body := strings.TrimSpace(text[lastEnd:m[0]])
			if body != "" || lastHeading != "" {
				sections = append(sections, section{heading: lastHeading, body: body})
			}
		}
		lastHeading = strings.TrimSpace(text[m[2]:m[3]])
		lastEnd = m[1]
	}

	remaining := strings.TrimSpace(text[lastEnd:])
	if remaining != "" || lastHeading != "" {
		sections = append(sections, section{heading: lastHeading, body: remaining})
	}

	if len(sections) == 0 {
		sections = append(sections, section{heading: "", body: text})
	}

	return sections
}

// splitByParagraphs splits a section body on blank-line boundaries. Paragraphs
// longer than chunkSize are broken down into sentences; shorter ones pass
// through whole. A single sentence longer than chunkSize is kept intact and
// will be emitted as an oversized chunk rather than truncated.
func splitByParagraphs(body string, chunkSize int) []string {
	var units []string

	for _, para := range paragraphPattern.Split(body, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if utf8.RuneCountInString(para) > chunkSize {
			units = append(units, splitBySentences(para)...)
		} else {
			units = append(units, para)
		}
	}

	return units
}

// splitBySentences splits after Japanese terminal punctuation (。！？) or a
// newline.
func splitBySentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '。' || r == '！' || r == '？' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// tailRunes returns the last n characters of text, or all of it when shorter.
func tailRunes(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	runes := []rune(text)
	if n >= len(runes) {
		return text
	}
	return string(runes[len(runes)-n:])
}
