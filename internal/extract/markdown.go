package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// MarkdownExtractor extracts text from markdown files. Headings become title
// blocks and the content under each heading becomes a text block, both carrying
// line offsets as positional proxies.
type MarkdownExtractor struct {
	parser       goldmark.Markdown
	linesPerPage int
}

// NewMarkdownExtractor creates a markdown extractor.
func NewMarkdownExtractor() *MarkdownExtractor {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &MarkdownExtractor{parser: md, linesPerPage: defaultLinesPerPage}
}

// Extract implements Extractor.
func (e *MarkdownExtractor) Extract(path string) (*Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	reader := text.NewReader(source)
	doc := e.parser.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(3),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect headings: %w", err)
	}

	// No headings: treat the whole file like plain text.
	if len(tree.Items) == 0 {
		return &Result{
			Text:     string(source),
			MimeType: "text/markdown",
			Blocks:   GroupLines(string(source), defaultLinesPerBlock, e.linesPerPage),
		}, nil
	}

	var blocks []TextBlock
	e.collectBlocks(doc, source, tree.Items, &blocks)

	return &Result{
		Text:     string(source),
		MimeType: "text/markdown",
		Blocks:   blocks,
	}, nil
}

// collectBlocks walks the heading tree, emitting a title block per heading and
// a text block for the body beneath it.
func (e *MarkdownExtractor) collectBlocks(doc ast.Node, source []byte, items toc.Items, blocks *[]TextBlock) {
	for _, item := range items {
		heading := findHeadingByID(doc, string(item.ID))
		if heading == nil || heading.Lines().Len() == 0 {
			continue
		}

		headLine := heading.Lines().At(0)
		startLine := lineAt(source, headLine.Start)
		*blocks = append(*blocks, TextBlock{
			Text:      string(item.Title),
			Page:      startLine/e.linesPerPage + 1,
			Kind:      KindTitle,
			LineStart: startLine,
			LineEnd:   startLine,
		})

		body := sectionBody(doc, source, heading)
		if body != "" {
			bodyStart := startLine + 1
			*blocks = append(*blocks, TextBlock{
				Text:      body,
				Page:      bodyStart/e.linesPerPage + 1,
				Kind:      KindText,
				LineStart: bodyStart,
				LineEnd:   bodyStart + strings.Count(body, "\n"),
			})
		}

		if len(item.Items) > 0 {
			e.collectBlocks(doc, source, item.Items, blocks)
		}
	}
}

// sectionBody extracts the content between a heading and the next heading of
// the same or higher level, excluding any nested subsections.
func sectionBody(doc ast.Node, source []byte, heading ast.Node) string {
	start := heading.Lines().At(0).Stop

	end := len(source)
	if next := nextHeading(doc, heading); next != nil && next.Lines().Len() > 0 {
		end = next.Lines().At(0).Start
	}
	if end < start {
		return ""
	}
	return strings.TrimSpace(string(source[start:end]))
}

// findHeadingByID locates a heading node by its auto-generated ID.
func findHeadingByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			headingID, ok := n.AttributeString("id")
			if ok {
				if b, isBytes := headingID.([]byte); isBytes && string(b) == id {
					found = n
					return ast.WalkStop, nil
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// nextHeading returns the first heading of any level after current, which
// bounds the body content of current's section.
func nextHeading(root ast.Node, current ast.Node) ast.Node {
	var next ast.Node
	foundCurrent := false
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if !foundCurrent {
			if n == current {
				foundCurrent = true
			}
			return ast.WalkContinue, nil
		}
		next = n
		return ast.WalkStop, nil
	})
	return next
}

// lineAt returns the 1-based line number of a byte offset.
func lineAt(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte{'\n'}) + 1
}
