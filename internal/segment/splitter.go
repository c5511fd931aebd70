// Package segment splits extracted text into bounded, overlapping segments
// suitable for embedding, re-attaching positional metadata per segment.
package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/knoxlab/docquery/internal/extract"
)

// Config controls splitting. All values are caller-supplied; the splitter has
// no hidden defaults.
type Config struct {
	MaxSegmentLength   int
	OverlapLength      int
	MinSegmentLength   int
	MaxSegmentsPerPage int
}

// Validate reports configuration errors before any splitting happens.
func (c Config) Validate() error {
	if c.MaxSegmentLength <= 0 {
		return fmt.Errorf("max segment length must be positive, got %d", c.MaxSegmentLength)
	}
	if c.OverlapLength < 0 || c.OverlapLength >= c.MaxSegmentLength {
		return fmt.Errorf("overlap length %d must be in [0, max segment length)", c.OverlapLength)
	}
	if c.MinSegmentLength < 0 || c.MinSegmentLength > c.MaxSegmentLength {
		return fmt.Errorf("min segment length %d must be in [0, max segment length]", c.MinSegmentLength)
	}
	if c.MaxSegmentsPerPage <= 0 {
		return fmt.Errorf("max segments per page must be positive, got %d", c.MaxSegmentsPerPage)
	}
	return nil
}

// Piece is one produced segment with its position within the source document.
type Piece struct {
	Text      string
	Page      int
	HasBBox   bool
	BBox      extract.BBox
	LineStart int
}

// Splitter splits text page by page using a sliding window that snaps to
// sentence boundaries, with configurable overlap between windows.
type Splitter struct {
	cfg Config
}

// NewSplitter validates the configuration and creates a splitter.
func NewSplitter(cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{cfg: cfg}, nil
}

var sentenceTerminators = map[rune]bool{
	'.': true, '。': true,
	'!': true, '！': true,
	'?': true, '？': true,
}

// Table-like content carries digits plus tabular punctuation (pipe separators,
// date patterns, decimal groups). Such segments stay intact regardless of
// length so the row structure is not destroyed.
var (
	digitsRe     = regexp.MustCompile(`\d`)
	tablePunctRe = regexp.MustCompile(`\|| {2,}\d|\d{4}[-/.年]\d{1,2}|\d{1,2}[-/月]\d{1,2}|\d+[.,]\d+`)
)

// IsTableLike reports whether text looks like flattened tabular content.
func IsTableLike(text string) bool {
	return digitsRe.MatchString(text) && tablePunctRe.MatchString(text)
}

// page groups the text and blocks of one logical page.
type page struct {
	number    int
	text      string
	blocks    []extract.TextBlock
	firstLine int
}

// Split splits text into pieces. When blocks are present, splitting proceeds
// per page so positional metadata can be re-attached; otherwise the whole text
// is treated as a single page.
func (s *Splitter) Split(text string, blocks []extract.TextBlock) []Piece {
	var pieces []Piece
	for _, pg := range buildPages(text, blocks) {
		pagePieces := s.splitPage(pg.text)
		if len(pagePieces) > s.cfg.MaxSegmentsPerPage {
			pagePieces = pagePieces[:s.cfg.MaxSegmentsPerPage]
		}
		for _, segText := range pagePieces {
			pieces = append(pieces, s.position(segText, pg))
		}
	}
	return pieces
}

// buildPages groups blocks by page number preserving order. Without blocks the
// text itself is the only page.
func buildPages(text string, blocks []extract.TextBlock) []page {
	if len(blocks) == 0 {
		return []page{{number: 1, text: text, firstLine: 1}}
	}

	var pages []page
	index := make(map[int]int)
	for _, b := range blocks {
		i, ok := index[b.Page]
		if !ok {
			firstLine := b.LineStart
			if firstLine == 0 {
				firstLine = 1
			}
			pages = append(pages, page{number: b.Page, firstLine: firstLine})
			i = len(pages) - 1
			index[b.Page] = i
		}
		pages[i].blocks = append(pages[i].blocks, b)
	}
	for i := range pages {
		texts := make([]string, len(pages[i].blocks))
		for j, b := range pages[i].blocks {
			texts[j] = b.Text
		}
		pages[i].text = strings.Join(texts, "\n\n")
	}
	return pages
}

// splitPage splits one page's text. Paragraphs within the length bound pass
// through unchanged; longer ones go through the sliding window. Table-like
// paragraphs are never split.
func (s *Splitter) splitPage(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		runes := []rune(para)
		if len(runes) <= s.cfg.MaxSegmentLength || IsTableLike(para) {
			out = append(out, para)
			continue
		}
		out = append(out, s.slideWindow(runes)...)
	}
	return out
}

// slideWindow advances in MaxSegmentLength steps, snapping the window end to
// just after a sentence terminator when one falls past MinSegmentLength.
// Successive windows overlap by OverlapLength runes.
func (s *Splitter) slideWindow(runes []rune) []string {
	var out []string
	start := 0
	for start < len(runes) {
		end := min(start+s.cfg.MaxSegmentLength, len(runes))
		if end < len(runes) {
			if snapped := s.sentenceSnap(runes, start, end); snapped > 0 {
				end = snapped
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
		if end >= len(runes) {
			break
		}

		next := end - s.cfg.OverlapLength
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// sentenceSnap scans backward from the window end for a sentence terminator
// past the minimum length, returning the index just after it, or 0.
func (s *Splitter) sentenceSnap(runes []rune, start, end int) int {
	floor := start + s.cfg.MinSegmentLength
	for i := end - 1; i > floor; i-- {
		if sentenceTerminators[runes[i]] {
			return i + 1
		}
	}
	return 0
}

// position matches a piece back against its page's blocks by substring
// containment and merges the bounding boxes of all matches. When no block
// matches, the position falls back to a line-number estimate from the piece's
// offset in the page text.
func (s *Splitter) position(text string, pg page) Piece {
	p := Piece{Text: text, Page: pg.number}

	var merged extract.BBox
	matchedBox := false
	matchedLine := 0
	for _, b := range pg.blocks {
		if !strings.Contains(text, b.Text) && !strings.Contains(b.Text, text) {
			continue
		}
		if b.BBox.Width > 0 || b.BBox.Height > 0 {
			merged = merged.Merge(b.BBox)
			matchedBox = true
		}
		if b.LineStart > 0 && (matchedLine == 0 || b.LineStart < matchedLine) {
			matchedLine = b.LineStart
		}
	}

	switch {
	case matchedBox:
		p.HasBBox = true
		p.BBox = merged
		if matchedLine > 0 {
			p.LineStart = matchedLine
		}
	case matchedLine > 0:
		p.LineStart = matchedLine
	default:
		p.LineStart = s.lineEstimate(text, pg)
	}
	return p
}

// lineEstimate counts newlines up to the piece's offset in the page text.
func (s *Splitter) lineEstimate(text string, pg page) int {
	probe := text
	if len(probe) > 48 {
		probe = probe[:48]
	}
	offset := strings.Index(pg.text, probe)
	if offset < 0 {
		return pg.firstLine
	}
	return pg.firstLine + strings.Count(pg.text[:offset], "\n")
}
