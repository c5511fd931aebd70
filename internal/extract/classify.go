package extract

import (
	"regexp"
	"sort"
	"strings"
)

// BlockKind tags the structural role of an extracted line or block.
type BlockKind string

const (
	KindText      BlockKind = "text"
	KindTitle     BlockKind = "title"
	KindList      BlockKind = "list"
	KindTableCell BlockKind = "table_cell"
	KindTableRow  BlockKind = "table_row"
)

// Word is a single positioned word from a layout-aware extractor.
type Word struct {
	Text     string
	X        float64
	Y        float64
	W        float64
	FontSize float64
	Font     string
}

// Line is a row of words sharing a vertical position.
type Line struct {
	Words []Word
	Text  string
}

// BlockClassifier tags a line with its structural kind. Implementations are
// pluggable so the heuristics can be tuned without touching the segmenter.
type BlockClassifier interface {
	Classify(line Line, bodyFontSize float64) BlockKind
}

var (
	listPrefixRe = regexp.MustCompile(`^\s*([•‣·▪*-]|\d{1,2}[.)、])\s+`)
	digitRe      = regexp.MustCompile(`\d`)
	dateLikeRe   = regexp.MustCompile(`\d{4}[-/.年]\d{1,2}|\d{1,2}[-/月]\d{1,2}|\d+[.,]\d+|\d+%`)
)

// HeuristicClassifier implements BlockClassifier with font and layout
// heuristics: oversized or bold short lines are titles, leading bullet or
// numeral patterns mark lists, and regular horizontal gaps combined with
// numeric or date-like content mark table cells.
type HeuristicClassifier struct {
	// TitleScale is the minimum font-size ratio over the body font for a
	// line to qualify as a title.
	TitleScale float64
	// TitleMaxLen caps the character length of a title line.
	TitleMaxLen int
	// CellGap is the minimum horizontal gap, in multiples of the font size,
	// that separates table columns.
	CellGap float64
}

// NewHeuristicClassifier creates a classifier with the default thresholds.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{
		TitleScale:  1.15,
		TitleMaxLen: 80,
		CellGap:     2.0,
	}
}

// Classify implements BlockClassifier.
func (c *HeuristicClassifier) Classify(line Line, bodyFontSize float64) BlockKind {
	text := strings.TrimSpace(line.Text)
	if text == "" {
		return KindText
	}

	if listPrefixRe.MatchString(text) {
		return KindList
	}

	if c.isTitle(line, text, bodyFontSize) {
		return KindTitle
	}

	if c.isTableRow(line, text) {
		return KindTableCell
	}

	return KindText
}

func (c *HeuristicClassifier) isTitle(line Line, text string, bodyFontSize float64) bool {
	if len(text) > c.TitleMaxLen {
		return false
	}
	bold := false
	oversized := false
	for _, w := range line.Words {
		if strings.Contains(w.Font, "Bold") {
			bold = true
		}
		if bodyFontSize > 0 && w.FontSize >= bodyFontSize*c.TitleScale {
			oversized = true
		}
	}
	return bold || oversized
}

// isTableRow detects aligned columns: at least two wide gaps between adjacent
// words on the same row, with numeric or date-like content present.
func (c *HeuristicClassifier) isTableRow(line Line, text string) bool {
	if len(line.Words) < 3 {
		return false
	}
	if !digitRe.MatchString(text) && !dateLikeRe.MatchString(text) {
		return false
	}
	return len(SplitCells(line, c.CellGap)) >= 3
}

// SplitCells partitions a line's words into column cells wherever the
// horizontal gap to the previous word exceeds gapScale times the font size.
func SplitCells(line Line, gapScale float64) []string {
	if len(line.Words) == 0 {
		return nil
	}
	sorted := make([]Word, len(line.Words))
	copy(sorted, line.Words)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var cells []string
	var current []string
	prevEnd := sorted[0].X
	for i, w := range sorted {
		threshold := w.FontSize * gapScale
		if threshold <= 0 {
			threshold = gapScale * 10
		}
		if i > 0 && w.X-prevEnd > threshold {
			cells = append(cells, strings.Join(current, " "))
			current = nil
		}
		current = append(current, w.Text)
		prevEnd = w.X + w.W
	}
	if len(current) > 0 {
		cells = append(cells, strings.Join(current, " "))
	}
	return cells
}
