package extract

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// rowTolerance is the vertical distance, in PDF units, within which words are
// considered part of the same line.
const rowTolerance = 2.0

// PDFExtractor extracts text from PDF files using per-word layout output.
// Words are grouped into lines by vertical position, each line is tagged by a
// BlockClassifier, and table-cell lines are flattened into pipe-delimited
// synthetic rows.
type PDFExtractor struct {
	classifier BlockClassifier
	logger     *slog.Logger
}

// NewPDFExtractor creates a PDF extractor with the given classifier.
func NewPDFExtractor(classifier BlockClassifier, logger *slog.Logger) *PDFExtractor {
	if classifier == nil {
		classifier = NewHeuristicClassifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{classifier: classifier, logger: logger}
}

// Extract implements Extractor. A failure on one page is logged and the page
// is skipped; only a document with no extractable text at all fails.
func (e *PDFExtractor) Extract(path string) (*Result, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var blocks []TextBlock
	var pageTexts []string

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		pageBlocks, err := e.extractPage(reader, pageNum)
		if err != nil {
			e.logger.Warn("skipping unreadable pdf page", "path", path, "page", pageNum, "error", err)
			continue
		}
		if len(pageBlocks) == 0 {
			continue
		}
		blocks = append(blocks, pageBlocks...)
		texts := make([]string, len(pageBlocks))
		for i, b := range pageBlocks {
			texts[i] = b.Text
		}
		pageTexts = append(pageTexts, strings.Join(texts, "\n\n"))
	}

	return &Result{
		Text:     strings.Join(pageTexts, "\n\n"),
		MimeType: "application/pdf",
		Blocks:   blocks,
	}, nil
}

// extractPage pulls the word layout for one page and converts it to blocks.
// The pdf library panics on some malformed content streams, so page-level
// recovery keeps one bad page from aborting the document.
func (e *PDFExtractor) extractPage(reader *pdf.Reader, pageNum int) (blocks []TextBlock, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page content: %v", r)
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, nil
	}
	content := page.Content()
	if len(content.Text) == 0 {
		return nil, nil
	}

	words := make([]Word, 0, len(content.Text))
	for _, t := range content.Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		words = append(words, Word{
			Text:     t.S,
			X:        t.X,
			Y:        t.Y,
			W:        t.W,
			FontSize: t.FontSize,
			Font:     t.Font,
		})
	}
	if len(words) == 0 {
		return nil, nil
	}

	lines := groupRows(words)
	body := bodyFontSize(words)
	return e.classifyLines(lines, body, pageNum), nil
}

// groupRows clusters words into lines by vertical position, top of page first,
// words left to right within a line.
func groupRows(words []Word) []Line {
	sort.Slice(words, func(i, j int) bool {
		if math.Abs(words[i].Y-words[j].Y) > rowTolerance {
			return words[i].Y > words[j].Y
		}
		return words[i].X < words[j].X
	})

	var lines []Line
	var current []Word
	for _, w := range words {
		if len(current) > 0 && math.Abs(current[0].Y-w.Y) > rowTolerance {
			lines = append(lines, makeLine(current))
			current = nil
		}
		current = append(current, w)
	}
	if len(current) > 0 {
		lines = append(lines, makeLine(current))
	}
	return lines
}

func makeLine(words []Word) Line {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return Line{Words: words, Text: strings.Join(parts, " ")}
}

// bodyFontSize estimates the dominant font size on a page as the median.
func bodyFontSize(words []Word) float64 {
	sizes := make([]float64, 0, len(words))
	for _, w := range words {
		if w.FontSize > 0 {
			sizes = append(sizes, w.FontSize)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// classifyLines tags each line and converts it to a TextBlock. Consecutive
// table-cell lines become pipe-delimited synthetic table rows so tabular
// structure survives flattening to plain text.
func (e *PDFExtractor) classifyLines(lines []Line, body float64, pageNum int) []TextBlock {
	var blocks []TextBlock
	for _, line := range lines {
		kind := e.classifier.Classify(line, body)
		block := TextBlock{
			Text: line.Text,
			Page: pageNum,
			Kind: kind,
			BBox: lineBBox(line),
		}
		if kind == KindTableCell {
			cells := SplitCells(line, 2.0)
			block.Text = strings.Join(cells, " | ")
			block.Kind = KindTableRow
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func lineBBox(line Line) BBox {
	if len(line.Words) == 0 {
		return BBox{}
	}
	minX, maxX := line.Words[0].X, line.Words[0].X+line.Words[0].W
	y := line.Words[0].Y
	height := line.Words[0].FontSize
	for _, w := range line.Words[1:] {
		minX = min(minX, w.X)
		maxX = max(maxX, w.X+w.W)
		y = min(y, w.Y)
		height = max(height, w.FontSize)
	}
	return BBox{X: minX, Y: y, Width: maxX - minX, Height: height}
}
