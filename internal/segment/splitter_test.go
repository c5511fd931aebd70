package segment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/knoxlab/docquery/internal/extract"
)

func testConfig() Config {
	return Config{
		MaxSegmentLength:   100,
		OverlapLength:      20,
		MinSegmentLength:   30,
		MaxSegmentsPerPage: 50,
	}
}

func mustSplitter(t *testing.T, cfg Config) *Splitter {
	t.Helper()
	s, err := NewSplitter(cfg)
	if err != nil {
		t.Fatalf("NewSplitter failed: %v", err)
	}
	return s
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", testConfig(), true},
		{"zero max", Config{OverlapLength: 10, MaxSegmentsPerPage: 10}, false},
		{"overlap >= max", Config{MaxSegmentLength: 50, OverlapLength: 50, MaxSegmentsPerPage: 10}, false},
		{"min > max", Config{MaxSegmentLength: 50, OverlapLength: 10, MinSegmentLength: 60, MaxSegmentsPerPage: 10}, false},
		{"zero per page", Config{MaxSegmentLength: 50, OverlapLength: 10}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

// TestSplit_ShortParagraphPassesThrough verifies paragraphs within the length
// bound are kept whole.
func TestSplit_ShortParagraphPassesThrough(t *testing.T) {
	s := mustSplitter(t, testConfig())

	pieces := s.Split("A short paragraph.", nil)
	if len(pieces) != 1 {
		t.Fatalf("expected 1 piece, got %d", len(pieces))
	}
	if pieces[0].Text != "A short paragraph." {
		t.Errorf("piece text changed: %q", pieces[0].Text)
	}
	if pieces[0].Page != 1 {
		t.Errorf("expected page 1, got %d", pieces[0].Page)
	}
}

// TestSplit_LongTextBounded verifies no produced piece exceeds the maximum
// length and that no sentence is lost.
func TestSplit_LongTextBounded(t *testing.T) {
	cfg := testConfig()
	s := mustSplitter(t, cfg)

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Sentence number %03d ends right here. ", i)
	}
	text := strings.TrimSpace(sb.String())

	pieces := s.Split(text, nil)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}

	joined := make([]string, len(pieces))
	for i, p := range pieces {
		if n := len([]rune(p.Text)); n > cfg.MaxSegmentLength {
			t.Errorf("piece %d has %d runes, exceeds max %d", i, n, cfg.MaxSegmentLength)
		}
		joined[i] = p.Text
	}

	all := strings.Join(joined, " ")
	for i := 0; i < 40; i++ {
		marker := fmt.Sprintf("Sentence number %03d", i)
		if !strings.Contains(all, marker) {
			t.Errorf("sentence %d lost during splitting", i)
		}
	}
}

// TestSplit_OverlapBetweenWindows verifies consecutive windows share content.
func TestSplit_OverlapBetweenWindows(t *testing.T) {
	cfg := testConfig()
	s := mustSplitter(t, cfg)

	// No sentence terminators, so windows cut at exactly MaxSegmentLength.
	text := strings.Repeat("abcdefghij", 30)
	pieces := s.Split(text, nil)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}
	for i := 1; i < len(pieces); i++ {
		prev := []rune(pieces[i-1].Text)
		tail := string(prev[len(prev)-cfg.OverlapLength:])
		if !strings.HasPrefix(pieces[i].Text, tail) {
			t.Errorf("piece %d does not start with previous window's overlap", i)
		}
	}
}

// TestSplit_TableLikeStaysIntact verifies long tabular paragraphs are not cut.
func TestSplit_TableLikeStaysIntact(t *testing.T) {
	s := mustSplitter(t, testConfig())

	var rows []string
	for i := 0; i < 12; i++ {
		rows = append(rows, fmt.Sprintf("2024-0%d-15 | item %d | 1,25%d.00", i%9+1, i, i))
	}
	table := strings.Join(rows, "\n")
	if len([]rune(table)) <= testConfig().MaxSegmentLength {
		t.Fatal("test table must exceed max length")
	}

	pieces := s.Split(table, nil)
	if len(pieces) != 1 {
		t.Fatalf("expected intact table piece, got %d pieces", len(pieces))
	}
	if pieces[0].Text != table {
		t.Errorf("table content changed")
	}
}

func TestIsTableLike(t *testing.T) {
	if !IsTableLike("2024-01-15 | revenue | 1,250.00") {
		t.Error("date and pipe row should be table-like")
	}
	if IsTableLike("An ordinary sentence with no structure.") {
		t.Error("plain prose should not be table-like")
	}
	if IsTableLike("row | with | pipes but no digits") {
		t.Error("digit-free text should not be table-like")
	}
}

// TestSplit_MaxSegmentsPerPage verifies the per-page cap.
func TestSplit_MaxSegmentsPerPage(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSegmentsPerPage = 3
	s := mustSplitter(t, cfg)

	paras := make([]string, 10)
	for i := range paras {
		paras[i] = fmt.Sprintf("Paragraph %d.", i)
	}
	pieces := s.Split(strings.Join(paras, "\n\n"), nil)
	if len(pieces) != 3 {
		t.Errorf("expected 3 pieces after cap, got %d", len(pieces))
	}
}

// TestSplit_PagesFromBlocks verifies page numbers and bounding boxes propagate
// from blocks to pieces.
func TestSplit_PagesFromBlocks(t *testing.T) {
	s := mustSplitter(t, testConfig())

	blocks := []extract.TextBlock{
		{Text: "First page content here.", Page: 1, BBox: extract.BBox{X: 10, Y: 700, Width: 200, Height: 12}},
		{Text: "Second page content here.", Page: 2, BBox: extract.BBox{X: 10, Y: 720, Width: 180, Height: 12}},
	}
	text := blocks[0].Text + "\n\n" + blocks[1].Text

	pieces := s.Split(text, blocks)
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	if pieces[0].Page != 1 || pieces[1].Page != 2 {
		t.Errorf("pages not propagated: %d, %d", pieces[0].Page, pieces[1].Page)
	}
	for i, p := range pieces {
		if !p.HasBBox {
			t.Errorf("piece %d missing bounding box", i)
		}
	}
	if pieces[0].BBox.X != 10 || pieces[0].BBox.Width != 200 {
		t.Errorf("piece 0 bbox not inherited: %+v", pieces[0].BBox)
	}
}

// TestSplit_LineFallback verifies line-number estimates when blocks carry line
// offsets instead of coordinates.
func TestSplit_LineFallback(t *testing.T) {
	s := mustSplitter(t, testConfig())

	blocks := []extract.TextBlock{
		{Text: "line one\nline two", Page: 1, LineStart: 1, LineEnd: 2},
		{Text: "line twenty-one content", Page: 2, LineStart: 21, LineEnd: 21},
	}
	text := blocks[0].Text + "\n\n" + blocks[1].Text

	pieces := s.Split(text, blocks)
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	if pieces[0].LineStart != 1 {
		t.Errorf("piece 0 line start: expected 1, got %d", pieces[0].LineStart)
	}
	if pieces[1].LineStart != 21 {
		t.Errorf("piece 1 line start: expected 21, got %d", pieces[1].LineStart)
	}
}

// TestSplit_EmptyText produces no pieces for blank input.
func TestSplit_EmptyText(t *testing.T) {
	s := mustSplitter(t, testConfig())
	if pieces := s.Split("   \n\n  ", nil); len(pieces) != 0 {
		t.Errorf("expected no pieces for blank input, got %d", len(pieces))
	}
}
