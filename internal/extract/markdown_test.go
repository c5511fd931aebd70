package extract

import (
	"testing"
)

func extractMarkdown(t *testing.T, content string) *Result {
	t.Helper()
	path := writeFile(t, "doc.md", content)
	res, err := NewMarkdownExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return res
}

func TestMarkdown_HeadingsAndBodies(t *testing.T) {
	res := extractMarkdown(t, `# Getting Started

Introduction text here.

## Installation

Install steps here.

## Configuration

Config details here.
`)

	if res.MimeType != "text/markdown" {
		t.Errorf("unexpected mime type: %q", res.MimeType)
	}

	var titles, bodies []TextBlock
	for _, b := range res.Blocks {
		switch b.Kind {
		case KindTitle:
			titles = append(titles, b)
		case KindText:
			bodies = append(bodies, b)
		}
	}

	if len(titles) != 3 {
		t.Fatalf("expected 3 title blocks, got %d", len(titles))
	}
	if titles[0].Text != "Getting Started" {
		t.Errorf("title 0: got %q", titles[0].Text)
	}
	if titles[1].Text != "Installation" || titles[2].Text != "Configuration" {
		t.Errorf("subsection titles: got %q, %q", titles[1].Text, titles[2].Text)
	}
	if titles[0].LineStart != 1 {
		t.Errorf("title 0 line: expected 1, got %d", titles[0].LineStart)
	}

	if len(bodies) != 3 {
		t.Fatalf("expected 3 body blocks, got %d", len(bodies))
	}
	if bodies[1].Text != "Install steps here." {
		t.Errorf("body 1: got %q", bodies[1].Text)
	}
}

func TestMarkdown_NoHeadingsFallsBackToLines(t *testing.T) {
	res := extractMarkdown(t, "plain paragraph one\n\nplain paragraph two\n")

	if len(res.Blocks) == 0 {
		t.Fatal("expected line-grouped blocks")
	}
	for _, b := range res.Blocks {
		if b.Kind != KindText {
			t.Errorf("expected only text blocks, got %s", b.Kind)
		}
	}
}

func TestMarkdown_SectionBodyExcludesSubsections(t *testing.T) {
	res := extractMarkdown(t, `# Top

Top intro.

## Nested

Nested body.
`)

	for _, b := range res.Blocks {
		if b.Kind != KindText {
			continue
		}
		if b.Text == "Top intro.\n\n## Nested\n\nNested body." {
			t.Error("top section body swallowed its subsection")
		}
	}
}
