// Package citation maps references in generated answer text back to the
// retrieval results the generator drew on. Citations are an enrichment of an
// answer turn, not a correctness-critical path, so malformed or out-of-range
// markers are skipped rather than surfaced as errors.
package citation

import (
	"regexp"
	"strconv"

	"github.com/knoxlab/docquery/internal/retrieve"
)

// Citation is one answer-to-segment reference. Index is the citation's
// 1-based ordinal within the answer, assigned in order of first reference,
// which generally differs from the result's rank in the retrieval list.
type Citation struct {
	Index        int
	Text         string
	DocumentID   int64
	SegmentID    int64
	DocumentName string
	PageNumber   int
	HasBBox      bool
	BBoxX        float64
	BBoxY        float64
	BBoxWidth    float64
	BBoxHeight   float64
	Similarity   float64
}

var markerRe = regexp.MustCompile(`\[(\d+)\]`)

// FromAnswer extracts the bracketed numeric markers in answer (e.g. "[2]"),
// treats each as a 1-based reference into results, and returns the referenced
// subset re-indexed 1..N in order of first appearance. Duplicate references
// collapse to one citation; markers outside 1..len(results) are ignored. An
// answer with no parseable markers yields an empty list.
func FromAnswer(answer string, results []retrieve.Result) []Citation {
	var refs []int
	for _, m := range markerRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		refs = append(refs, n)
	}
	return FromIndices(refs, results)
}

// FromIndices builds citations from an explicit list of 1-based references
// into results, for generators that emit a machine-readable citation list
// instead of inline markers. Semantics match FromAnswer: dedupe on first
// appearance, skip out-of-range references, re-index 1..N.
func FromIndices(refs []int, results []retrieve.Result) []Citation {
	citations := make([]Citation, 0, len(refs))
	seen := make(map[int]bool, len(refs))
	for _, n := range refs {
		if n < 1 || n > len(results) || seen[n] {
			continue
		}
		seen[n] = true
		res := results[n-1]
		citations = append(citations, Citation{
			Index:        len(citations) + 1,
			Text:         res.Content,
			DocumentID:   res.DocumentID,
			SegmentID:    res.SegmentID,
			DocumentName: res.DocumentName,
			PageNumber:   res.PageNumber,
			HasBBox:      res.HasBBox,
			BBoxX:        res.BBoxX,
			BBoxY:        res.BBoxY,
			BBoxWidth:    res.BBoxWidth,
			BBoxHeight:   res.BBoxHeight,
			Similarity:   res.Similarity,
		})
	}
	return citations
}
