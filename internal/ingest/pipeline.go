// Package ingest drives the document ingestion path: extraction, splitting,
// embedding, and vector index storage, with per-segment failure isolation.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knoxlab/docquery/internal/embedding"
	"github.com/knoxlab/docquery/internal/extract"
	"github.com/knoxlab/docquery/internal/segment"
	"github.com/knoxlab/docquery/internal/store"
	"github.com/knoxlab/docquery/internal/vectorindex"
)

// Embedder is the embedding dependency; satisfied by *embedding.Embedder.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Result contains the outcome of one ingestion call.
type Result struct {
	Document *store.Document
	Report   BatchReport
	Duration time.Duration
}

// DocumentStatus is the asynchronously queryable processing state of a
// document.
type DocumentStatus struct {
	Status                 string
	Error                  string
	Name                   string
	MimeType               string
	Segments               int
	SegmentsWithEmbeddings int
	CreatedAt              time.Time
}

// Pipeline orchestrates ingestion from raw bytes to stored vector records.
type Pipeline struct {
	extractors *extract.Registry
	splitter   *segment.Splitter
	embedder   Embedder
	index      vectorindex.Index
	store      *store.Store
	uploadDir  string
	embedBatch int
	logger     *slog.Logger
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(
	extractors *extract.Registry,
	splitter *segment.Splitter,
	embedder Embedder,
	index vectorindex.Index,
	st *store.Store,
	uploadDir string,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractors: extractors,
		splitter:   splitter,
		embedder:   embedder,
		index:      index,
		store:      st,
		uploadDir:  uploadDir,
		embedBatch: embedding.DefaultBatchSize,
		logger:     logger,
	}
}

// ProcessDocument ingests one document end to end. Document-level failures
// (missing dataset, no extractable text) abort the call and mark the document
// failed; per-segment embedding or storage failures are recorded individually
// in the report and leave already-succeeded segments intact. The document is
// marked completed only when every segment has its vector record.
func (p *Pipeline) ProcessDocument(ctx context.Context, r io.Reader, filename, mimeType string, datasetID int64) (*Result, error) {
	start := time.Now()
	result := &Result{}

	exists, err := p.store.DatasetExists(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("dataset %d: %w", datasetID, store.ErrNotFound)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])

	version, err := p.store.NextVersion(ctx, fileHash, filename)
	if err != nil {
		return nil, err
	}

	filePath := filepath.Join(p.uploadDir, storedFilename(filename, fileHash, version))
	if err := os.MkdirAll(p.uploadDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	doc := &store.Document{
		DatasetID:    datasetID,
		Name:         filename,
		OriginalName: filename,
		FileHash:     fileHash,
		Version:      version,
		MimeType:     mimeType,
		Size:         int64(len(data)),
		FilePath:     filePath,
		Status:       store.StatusProcessing,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	result.Document = doc
	p.logger.Info("processing document",
		"document", doc.ID, "name", filename, "version", version, "size", len(data))

	extracted, err := p.extractors.Extract(filePath, mimeType)
	if err != nil {
		return result, p.failDocument(ctx, doc, err)
	}
	p.logger.Debug("extracted document",
		"document", doc.ID, "chars", len(extracted.Text), "blocks", len(extracted.Blocks))

	pieces := p.splitter.Split(extracted.Text, extracted.Blocks)
	if len(pieces) == 0 {
		return result, p.failDocument(ctx, doc, fmt.Errorf("%w: splitting produced no segments", extract.ErrEmptyContent))
	}

	segments := make([]*store.Segment, len(pieces))
	for i, piece := range pieces {
		segments[i] = &store.Segment{
			DocumentID: doc.ID,
			Content:    piece.Text,
			Position:   i,
			WordCount:  len(strings.Fields(piece.Text)),
			Tokens:     len([]rune(piece.Text)),
			PageNumber: piece.Page,
			HasBBox:    piece.HasBBox,
			BBoxX:      piece.BBox.X,
			BBoxY:      piece.BBox.Y,
			BBoxWidth:  piece.BBox.Width,
			BBoxHeight: piece.BBox.Height,
			VectorKey:  uuid.New().String(),
			Status:     store.StatusPending,
		}
	}
	if err := p.store.InsertSegments(ctx, segments); err != nil {
		return result, p.failDocument(ctx, doc, err)
	}
	p.logger.Info("created segments", "document", doc.ID, "segments", len(segments))

	p.embedAndStore(ctx, segments, &result.Report)

	if failed := result.Report.Failed(); failed > 0 {
		err := fmt.Errorf("%d of %d segments failed: %v", failed, len(segments), result.Report.FirstError())
		result.Duration = time.Since(start)
		return result, p.failDocument(ctx, doc, err)
	}

	if err := p.store.SetDocumentStatus(ctx, doc.ID, store.StatusCompleted, ""); err != nil {
		return result, err
	}
	doc.Status = store.StatusCompleted
	result.Duration = time.Since(start)
	p.logger.Info("document completed",
		"document", doc.ID, "segments", len(segments), "duration", result.Duration)
	return result, nil
}

// embedAndStore embeds segments in bounded batches and upserts their vector
// records, recording per-segment outcomes. A failing batch marks only its own
// segments failed; earlier batches stay written.
func (p *Pipeline) embedAndStore(ctx context.Context, segments []*store.Segment, report *BatchReport) {
	for i := 0; i < len(segments); i += p.embedBatch {
		end := min(i+p.embedBatch, len(segments))
		batch := segments[i:end]

		texts := make([]string, len(batch))
		for j, seg := range batch {
			texts[j] = seg.Content
		}

		vectors, err := p.embedder.GenerateEmbeddings(ctx, texts)
		if err != nil {
			p.logger.Warn("embedding batch failed",
				"from", i, "to", end, "error", err)
			p.markBatchFailed(ctx, batch, fmt.Errorf("embedding: %w", err), report)
			continue
		}

		records := make([]vectorindex.Record, len(batch))
		for j, seg := range batch {
			records[j] = vectorindex.Record{
				Key:    seg.VectorKey,
				Vector: vectors[j],
				Text:   seg.Content,
				Meta: vectorindex.Meta{
					DocumentID: strconv.FormatInt(seg.DocumentID, 10),
					SegmentID:  strconv.FormatInt(seg.ID, 10),
					PageNumber: seg.PageNumber,
				},
			}
		}

		if err := p.index.Upsert(ctx, records); err != nil {
			p.logger.Warn("vector upsert failed",
				"from", i, "to", end, "error", err)
			p.markBatchFailed(ctx, batch, fmt.Errorf("vector index: %w", err), report)
			continue
		}

		for _, seg := range batch {
			if err := p.store.SetSegmentStatus(ctx, seg.ID, store.StatusCompleted, ""); err != nil {
				report.add(SegmentResult{SegmentID: seg.ID, Position: seg.Position, VectorKey: seg.VectorKey, Err: err})
				continue
			}
			seg.Status = store.StatusCompleted
			report.add(SegmentResult{SegmentID: seg.ID, Position: seg.Position, VectorKey: seg.VectorKey})
		}
	}
}

func (p *Pipeline) markBatchFailed(ctx context.Context, batch []*store.Segment, cause error, report *BatchReport) {
	for _, seg := range batch {
		if err := p.store.SetSegmentStatus(ctx, seg.ID, store.StatusFailed, cause.Error()); err != nil {
			p.logger.Warn("recording segment failure failed", "segment", seg.ID, "error", err)
		}
		seg.Status = store.StatusFailed
		report.add(SegmentResult{SegmentID: seg.ID, Position: seg.Position, VectorKey: seg.VectorKey, Err: cause})
	}
}

// failDocument marks the document failed, preserving the error message.
func (p *Pipeline) failDocument(ctx context.Context, doc *store.Document, cause error) error {
	doc.Status = store.StatusFailed
	doc.Error = cause.Error()
	if err := p.store.SetDocumentStatus(ctx, doc.ID, store.StatusFailed, cause.Error()); err != nil {
		p.logger.Warn("recording document failure failed", "document", doc.ID, "error", err)
	}
	p.logger.Warn("document failed", "document", doc.ID, "error", cause)
	return cause
}

// Status reports a document's processing state and segment counts without
// blocking on the ingestion call.
func (p *Pipeline) Status(ctx context.Context, documentID int64) (*DocumentStatus, error) {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	total, embedded, err := p.store.CountSegments(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &DocumentStatus{
		Status:                 doc.Status,
		Error:                  doc.Error,
		Name:                   doc.Name,
		MimeType:               doc.MimeType,
		Segments:               total,
		SegmentsWithEmbeddings: embedded,
		CreatedAt:              doc.CreatedAt,
	}, nil
}

// DeleteDocument cascades deletion through segments and their vector records.
// Returns false when the document does not exist.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID int64) (bool, error) {
	keys, err := p.store.SegmentVectorKeys(ctx, documentID)
	if err != nil {
		return false, err
	}
	if len(keys) > 0 {
		if err := p.index.Delete(ctx, keys); err != nil {
			return false, fmt.Errorf("deleting vector records: %w", err)
		}
	}
	deleted, err := p.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	if deleted {
		p.logger.Info("deleted document", "document", documentID, "vectors", len(keys))
	}
	return deleted, nil
}

// storedFilename builds the unique on-disk name for one document version.
func storedFilename(original, fileHash string, version int) string {
	ext := filepath.Ext(original)
	name := strings.TrimSuffix(original, ext)
	return fmt.Sprintf("%s_v%d_%s%s", name, version, fileHash[:8], ext)
}
