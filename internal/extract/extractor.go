// Package extract turns raw document files into plain text plus positioned
// text blocks used downstream for segment-level positional metadata.
package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// BBox is an axis-aligned bounding box in page coordinates.
type BBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Merge extends the box to cover other. A zero-size receiver adopts other.
func (b BBox) Merge(other BBox) BBox {
	if b.Width == 0 && b.Height == 0 {
		return other
	}
	if other.Width == 0 && other.Height == 0 {
		return b
	}
	minX := min(b.X, other.X)
	minY := min(b.Y, other.Y)
	maxX := max(b.X+b.Width, other.X+other.Width)
	maxY := max(b.Y+b.Height, other.Y+other.Height)
	return BBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// TextBlock is a positioned span of extracted text. For paginated formats the
// position is a page number plus bounding box; for line-based formats it is a
// line range with page numbers synthesized from fixed-size line groups.
type TextBlock struct {
	Text      string
	Page      int
	Kind      BlockKind
	BBox      BBox
	LineStart int
	LineEnd   int
}

// Result is the output of extracting a single file.
type Result struct {
	Text     string
	MimeType string
	Blocks   []TextBlock
}

// Extractor extracts text and positioned blocks from a file on disk.
type Extractor interface {
	Extract(path string) (*Result, error)
}

// Registry routes files to format-specific extractors by extension, falling
// back to MIME type when the extension is unknown.
type Registry struct {
	byExt  map[string]Extractor
	byMime map[string]Extractor
	logger *slog.Logger
}

// NewRegistry creates a registry with the built-in extractors registered.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		byExt:  make(map[string]Extractor),
		byMime: make(map[string]Extractor),
		logger: logger,
	}

	text := NewTextExtractor()
	md := NewMarkdownExtractor()
	pdf := NewPDFExtractor(NewHeuristicClassifier(), logger)
	docx := NewDOCXExtractor()

	r.Register(".txt", "text/plain", text)
	r.Register(".md", "text/markdown", md)
	r.Register(".pdf", "application/pdf", pdf)
	r.Register(".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", docx)
	return r
}

// Register associates an extension and MIME type with an extractor.
func (r *Registry) Register(ext, mimeType string, e Extractor) {
	if ext != "" {
		r.byExt[strings.ToLower(ext)] = e
	}
	if mimeType != "" {
		r.byMime[mimeType] = e
	}
}

// Extract selects an extractor for the file and runs it. The returned text is
// guaranteed non-empty after trimming; an empty extraction is a document-level
// failure.
func (r *Registry) Extract(path, mimeType string) (*Result, error) {
	e := r.lookup(path, mimeType)
	if e == nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, filepath.Ext(path), mimeType)
	}

	res, err := e.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, filepath.Base(path))
	}
	if res.MimeType == "" {
		res.MimeType = mimeType
	}
	return res, nil
}

func (r *Registry) lookup(path, mimeType string) Extractor {
	if e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return e
	}
	if e, ok := r.byMime[mimeType]; ok {
		return e
	}
	// Generic text MIME types fall back to the plain text extractor.
	if strings.HasPrefix(mimeType, "text/") {
		return r.byMime["text/plain"]
	}
	return nil
}
