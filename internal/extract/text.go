package extract

import (
	"os"
	"strings"
)

const (
	// defaultLinesPerBlock groups plain text lines into fixed-size runs so
	// that line offsets can stand in for page coordinates.
	defaultLinesPerBlock = 10

	// defaultLinesPerPage synthesizes page numbers for formats without a
	// native page concept.
	defaultLinesPerPage = 20
)

// TextExtractor reads plain text files. Blocks are synthesized by grouping
// fixed-size runs of lines; their line offsets serve as positional proxies.
type TextExtractor struct {
	linesPerBlock int
	linesPerPage  int
}

// NewTextExtractor creates a plain text extractor with default grouping.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{
		linesPerBlock: defaultLinesPerBlock,
		linesPerPage:  defaultLinesPerPage,
	}
}

// Extract implements Extractor.
func (e *TextExtractor) Extract(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	return &Result{
		Text:     text,
		MimeType: "text/plain",
		Blocks:   GroupLines(text, e.linesPerBlock, e.linesPerPage),
	}, nil
}

// GroupLines synthesizes text blocks from raw text by grouping consecutive
// lines. Line numbers are 1-based; page numbers derive from linesPerPage.
func GroupLines(text string, linesPerBlock, linesPerPage int) []TextBlock {
	if linesPerBlock <= 0 {
		linesPerBlock = defaultLinesPerBlock
	}
	if linesPerPage <= 0 {
		linesPerPage = defaultLinesPerPage
	}

	lines := strings.Split(text, "\n")
	var blocks []TextBlock
	for start := 0; start < len(lines); start += linesPerBlock {
		end := min(start+linesPerBlock, len(lines))
		chunk := strings.TrimRight(strings.Join(lines[start:end], "\n"), "\n")
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		blocks = append(blocks, TextBlock{
			Text:      chunk,
			Page:      start/linesPerPage + 1,
			Kind:      KindText,
			LineStart: start + 1,
			LineEnd:   end,
		})
	}
	return blocks
}
