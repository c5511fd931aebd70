package retrieve

import (
	"math"
	"strings"
	"testing"
)

func TestLexicalRelevance_Bounds(t *testing.T) {
	cases := []struct {
		query   string
		content string
	}{
		{"cats", "all about cats"},
		{"cats dogs birds", "cats cats cats"},
		{"quarterly revenue report", "# Quarterly Revenue Report\n\nquarterly revenue report details"},
		{"", "anything"},
		{"query", ""},
	}
	for _, tc := range cases {
		score := LexicalRelevance(tc.query, tc.content)
		if score < 0 || score > 1 {
			t.Errorf("LexicalRelevance(%q, %q) = %v, out of [0, 1]", tc.query, tc.content, score)
		}
	}
}

func TestLexicalRelevance_EmptyQuery(t *testing.T) {
	if score := LexicalRelevance("   ", "content"); score != 0 {
		t.Errorf("blank query: expected 0, got %v", score)
	}
}

func TestLexicalRelevance_KeywordOverlap(t *testing.T) {
	full := LexicalRelevance("alpha beta", "alpha beta gamma")
	half := LexicalRelevance("alpha beta", "alpha gamma delta")
	none := LexicalRelevance("alpha beta", "gamma delta epsilon")

	if !(full > half && half > none) {
		t.Errorf("overlap ordering violated: full=%v half=%v none=%v", full, half, none)
	}
	if none != 0 {
		t.Errorf("no overlap: expected 0, got %v", none)
	}
}

// TestLexicalRelevance_ExactScore pins the formula on a partial-overlap case:
// half the query words present, no cues, density capped contribution.
func TestLexicalRelevance_ExactScore(t *testing.T) {
	// base 2/4 + density min(0.2, 2/40*2) = 0.5 + 0.1
	content := "alpha beta " + strings.TrimSpace(strings.Repeat("filler ", 38))
	got := LexicalRelevance("alpha beta gamma delta", content)
	if math.Abs(got-0.6) > 1e-9 {
		t.Errorf("expected 0.6, got %v", got)
	}
}

func TestLexicalRelevance_FullMatchSaturates(t *testing.T) {
	if got := LexicalRelevance("machine learning", "an intro to machine learning methods"); got != 1 {
		t.Errorf("full overlap with phrase: expected 1, got %v", got)
	}
}

func TestLexicalRelevance_StructureBonuses(t *testing.T) {
	titled := LexicalRelevance("setup guide", "# Setup\nsetup instructions")
	plain := LexicalRelevance("setup guide", "setup instructions here")
	if titled <= plain {
		t.Errorf("heading cue should add score: %v <= %v", titled, plain)
	}

	listed := LexicalRelevance("steps guide", "• steps one\n• steps two")
	flat := LexicalRelevance("steps guide", "steps one and steps two")
	if listed <= flat {
		t.Errorf("list cue should add score: %v <= %v", listed, flat)
	}

	upper := LexicalRelevance("notice period", "IMPORTANT NOTICE")
	lower := LexicalRelevance("notice period", "important notice and a lot of other words here")
	if upper <= lower {
		t.Errorf("all-caps content should carry the title bonus: %v <= %v", upper, lower)
	}
}

func TestLexicalRelevance_DensityCapped(t *testing.T) {
	dense := LexicalRelevance("term extra", "term term")
	diluted := LexicalRelevance("term extra", "term "+strings.TrimSpace(strings.Repeat("filler ", 50)))
	if dense <= diluted {
		t.Errorf("density should favor concentrated matches: %v <= %v", dense, diluted)
	}
	// The density contribution alone can never exceed its cap.
	if dense > 0.5+densityCeiling+1e-9 {
		t.Errorf("density bonus exceeded cap: %v", dense)
	}
}
