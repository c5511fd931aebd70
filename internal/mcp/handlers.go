package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/knoxlab/docquery/internal/citation"
	"github.com/knoxlab/docquery/internal/ingest"
	"github.com/knoxlab/docquery/internal/retrieve"
	"github.com/knoxlab/docquery/internal/store"
)

// makeSearchHandler creates the search_knowledge tool handler.
func makeSearchHandler(retriever *retrieve.Retriever) func(
	context.Context, *mcp.CallToolRequest, SearchKnowledgeInput,
) (*mcp.CallToolResult, SearchKnowledgeOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchKnowledgeInput) (
		*mcp.CallToolResult, SearchKnowledgeOutput, error,
	) {
		results, err := retriever.Search(ctx, input.Query, input.Limit, input.WorkspaceID)
		if err != nil {
			return nil, SearchKnowledgeOutput{}, fmt.Errorf("search failed: %w", err)
		}

		out := make([]SearchResult, 0, len(results))
		for _, res := range results {
			out = append(out, SearchResult{
				SegmentID:    res.SegmentID,
				DocumentID:   res.DocumentID,
				DocumentName: res.DocumentName,
				Content:      res.Content,
				Score:        res.Score,
				Similarity:   res.Similarity,
				PageNumber:   res.PageNumber,
				BBox:         bboxOf(res.HasBBox, res.BBoxX, res.BBoxY, res.BBoxWidth, res.BBoxHeight),
			})
		}

		if len(out) == 0 {
			return nil, SearchKnowledgeOutput{
				Results: []SearchResult{},
				Message: "No matching segments found. Try broader search terms.",
			}, nil
		}
		return nil, SearchKnowledgeOutput{Results: out}, nil
	}
}

// makeIngestHandler creates the ingest_document tool handler. The file is read
// from the local filesystem; MCP tool calls carry paths, not payloads.
func makeIngestHandler(pipeline *ingest.Pipeline) func(
	context.Context, *mcp.CallToolRequest, IngestDocumentInput,
) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestDocumentInput) (
		*mcp.CallToolResult, IngestDocumentOutput, error,
	) {
		f, err := os.Open(input.Path)
		if err != nil {
			return nil, IngestDocumentOutput{}, fmt.Errorf("opening %s: %w", input.Path, err)
		}
		defer f.Close()

		result, err := pipeline.ProcessDocument(ctx, f, filepath.Base(input.Path), input.MimeType, input.DatasetID)
		if err != nil && (result == nil || result.Document == nil) {
			return nil, IngestDocumentOutput{}, fmt.Errorf("ingestion failed: %w", err)
		}

		// Partial failures leave the document marked failed; report that
		// outcome instead of erroring the tool call.
		doc := result.Document
		return nil, IngestDocumentOutput{
			DocumentID:     doc.ID,
			Name:           doc.OriginalName,
			Version:        doc.Version,
			Status:         doc.Status,
			Segments:       len(result.Report.Results),
			FailedSegments: result.Report.Failed(),
			Error:          doc.Error,
			DurationMS:     result.Duration.Milliseconds(),
		}, nil
	}
}

// makeStatusHandler creates the document_status tool handler. An unknown
// document id is a Found=false response, not a tool error.
func makeStatusHandler(pipeline *ingest.Pipeline) func(
	context.Context, *mcp.CallToolRequest, DocumentStatusInput,
) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DocumentStatusInput) (
		*mcp.CallToolResult, DocumentStatusOutput, error,
	) {
		status, err := pipeline.Status(ctx, input.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, DocumentStatusOutput{Found: false}, nil
			}
			return nil, DocumentStatusOutput{}, fmt.Errorf("status lookup failed: %w", err)
		}

		return nil, DocumentStatusOutput{
			Found:                  true,
			Status:                 status.Status,
			Error:                  status.Error,
			Name:                   status.Name,
			MimeType:               status.MimeType,
			Segments:               status.Segments,
			SegmentsWithEmbeddings: status.SegmentsWithEmbeddings,
			CreatedAt:              status.CreatedAt,
		}, nil
	}
}

// makeDeleteHandler creates the delete_document tool handler.
func makeDeleteHandler(pipeline *ingest.Pipeline) func(
	context.Context, *mcp.CallToolRequest, DeleteDocumentInput,
) (*mcp.CallToolResult, DeleteDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DeleteDocumentInput) (
		*mcp.CallToolResult, DeleteDocumentOutput, error,
	) {
		deleted, err := pipeline.DeleteDocument(ctx, input.DocumentID)
		if err != nil {
			return nil, DeleteDocumentOutput{}, fmt.Errorf("delete failed: %w", err)
		}
		return nil, DeleteDocumentOutput{Deleted: deleted}, nil
	}
}

// makeCitationsHandler creates the extract_citations tool handler. Segment ids
// that no longer resolve are kept as positional placeholders so the [n]
// markers in the answer still line up; markers pointing at them are dropped by
// the citation mapping.
func makeCitationsHandler(st *store.Store) func(
	context.Context, *mcp.CallToolRequest, ExtractCitationsInput,
) (*mcp.CallToolResult, ExtractCitationsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ExtractCitationsInput) (
		*mcp.CallToolResult, ExtractCitationsOutput, error,
	) {
		results := make([]retrieve.Result, len(input.SegmentIDs))
		for i, id := range input.SegmentIDs {
			seg, err := st.SegmentByID(ctx, id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, ExtractCitationsOutput{}, fmt.Errorf("loading segment %d: %w", id, err)
			}
			doc, err := st.GetDocument(ctx, seg.DocumentID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, ExtractCitationsOutput{}, fmt.Errorf("loading document %d: %w", seg.DocumentID, err)
			}
			results[i] = retrieve.Result{
				SegmentID:    seg.ID,
				DocumentID:   seg.DocumentID,
				DocumentName: doc.OriginalName,
				Content:      seg.Content,
				PageNumber:   seg.PageNumber,
				HasBBox:      seg.HasBBox,
				BBoxX:        seg.BBoxX,
				BBoxY:        seg.BBoxY,
				BBoxWidth:    seg.BBoxWidth,
				BBoxHeight:   seg.BBoxHeight,
			}
		}

		citations := citation.FromAnswer(input.Answer, results)
		out := make([]CitationOutput, 0, len(citations))
		for _, c := range citations {
			if c.SegmentID == 0 {
				continue // placeholder for an unresolved segment
			}
			out = append(out, CitationOutput{
				Index:        len(out) + 1,
				Text:         c.Text,
				DocumentID:   c.DocumentID,
				DocumentName: c.DocumentName,
				SegmentID:    c.SegmentID,
				PageNumber:   c.PageNumber,
				BBox:         bboxOf(c.HasBBox, c.BBoxX, c.BBoxY, c.BBoxWidth, c.BBoxHeight),
				Similarity:   c.Similarity,
			})
		}
		return nil, ExtractCitationsOutput{Citations: out}, nil
	}
}

func bboxOf(has bool, x, y, w, h float64) *BBox {
	if !has {
		return nil
	}
	return &BBox{X: x, Y: y, Width: w, Height: h}
}
