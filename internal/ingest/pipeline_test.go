package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoxlab/docquery/internal/extract"
	"github.com/knoxlab/docquery/internal/segment"
	"github.com/knoxlab/docquery/internal/store"
	"github.com/knoxlab/docquery/internal/vectorindex"
)

// fakeEmbedder returns deterministic vectors, optionally failing on chosen
// batch calls to exercise partial-failure handling.
type fakeEmbedder struct {
	dim       int
	calls     int
	failCalls map[int]bool
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failCalls[f.calls] {
		return nil, errors.New("embedding service unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dim)
		for j := range v {
			v[j] = float32((len(text)+i+j)%7) / 7
		}
		out[i] = v
	}
	return out, nil
}

type testEnv struct {
	pipeline  *Pipeline
	store     *store.Store
	index     *vectorindex.Memory
	embedder  *fakeEmbedder
	datasetID int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	datasetID, err := st.EnsureDataset(context.Background(), "test-dataset", "")
	require.NoError(t, err)

	index := vectorindex.NewMemory(0)
	embedder := &fakeEmbedder{dim: 8, failCalls: map[int]bool{}}

	splitter, err := segment.NewSplitter(segment.Config{
		MaxSegmentLength:   200,
		OverlapLength:      20,
		MinSegmentLength:   40,
		MaxSegmentsPerPage: 100,
	})
	require.NoError(t, err)

	pipeline := NewPipeline(extract.NewRegistry(nil), splitter, embedder, index, st,
		filepath.Join(dir, "uploads"), nil)

	return &testEnv{pipeline: pipeline, store: st, index: index, embedder: embedder, datasetID: datasetID}
}

func (e *testEnv) ingest(t *testing.T, name, content string) (*Result, error) {
	t.Helper()
	return e.pipeline.ProcessDocument(context.Background(), strings.NewReader(content), name, "", e.datasetID)
}

func TestProcessDocument_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 30 lines of plain text: two synthesized pages.
	var lines []string
	for i := 1; i <= 30; i++ {
		lines = append(lines, fmt.Sprintf("This is line %d of the document.", i))
	}
	result, err := env.ingest(t, "report.txt", strings.Join(lines, "\n"))
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, store.StatusCompleted, doc.Status)
	assert.Equal(t, 1, doc.Version)
	assert.NotEmpty(t, doc.FileHash)
	assert.Zero(t, result.Report.Failed())

	segments, err := env.store.SegmentsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, segments)

	pages := map[int]bool{}
	for _, seg := range segments {
		assert.Equal(t, store.StatusCompleted, seg.Status)
		assert.NotEmpty(t, seg.VectorKey)
		assert.Positive(t, seg.WordCount)
		pages[seg.PageNumber] = true
	}
	assert.True(t, pages[1], "expected segments on page 1")
	assert.True(t, pages[2], "expected segments on page 2")

	// One vector record per segment.
	assert.Equal(t, len(segments), env.index.Len())

	status, err := env.pipeline.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, status.Status)
	assert.Equal(t, len(segments), status.Segments)
	assert.Equal(t, len(segments), status.SegmentsWithEmbeddings)
}

func TestProcessDocument_Versioning(t *testing.T) {
	env := newTestEnv(t)
	content := "The same document uploaded twice in a row."

	r1, err := env.ingest(t, "dup.txt", content)
	require.NoError(t, err)
	r2, err := env.ingest(t, "dup.txt", content)
	require.NoError(t, err)

	assert.Equal(t, 1, r1.Document.Version)
	assert.Equal(t, 2, r2.Document.Version)
	assert.NotEqual(t, r1.Document.ID, r2.Document.ID)
	assert.Equal(t, r1.Document.FileHash, r2.Document.FileHash)
	assert.NotEqual(t, r1.Document.FilePath, r2.Document.FilePath)
}

func TestProcessDocument_UnknownDataset(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.pipeline.ProcessDocument(context.Background(),
		strings.NewReader("content"), "doc.txt", "", 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessDocument_EmptyContentFailsDocument(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.ingest(t, "empty.txt", "   \n\n  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, extract.ErrEmptyContent)
	require.NotNil(t, result.Document)
	assert.Equal(t, store.StatusFailed, result.Document.Status)
	assert.NotEmpty(t, result.Document.Error)
}

func TestProcessDocument_UnsupportedTypeFailsDocument(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.pipeline.ProcessDocument(context.Background(),
		strings.NewReader("binary-ish"), "photo.png", "image/png", env.datasetID)
	require.Error(t, err)
	assert.ErrorIs(t, err, extract.ErrUnsupportedType)
	assert.Equal(t, store.StatusFailed, result.Document.Status)
}

func TestProcessDocument_PartialBatchFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Enough distinct paragraphs to span at least two embedding batches of 20.
	var paras []string
	for i := 0; i < 25; i++ {
		paras = append(paras, fmt.Sprintf("Paragraph %d with some distinct content.", i))
	}
	// Second embedding call fails; first succeeds.
	env.embedder.failCalls[2] = true

	result, err := env.ingest(t, "partial.txt", strings.Join(paras, "\n\n"))
	require.Error(t, err)

	doc := result.Document
	assert.Equal(t, store.StatusFailed, doc.Status)
	assert.Contains(t, doc.Error, "segments failed")

	// First batch's segments stay completed; only the failed batch is marked.
	assert.Positive(t, result.Report.Succeeded())
	assert.Positive(t, result.Report.Failed())

	segments, err := env.store.SegmentsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	completed, failed := 0, 0
	for _, seg := range segments {
		switch seg.Status {
		case store.StatusCompleted:
			completed++
		case store.StatusFailed:
			failed++
		}
	}
	assert.Equal(t, result.Report.Succeeded(), completed)
	assert.Equal(t, result.Report.Failed(), failed)

	// Succeeded segments kept their vector records.
	assert.Equal(t, completed, env.index.Len())
}

func TestDeleteDocument_CascadesVectors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.ingest(t, "victim.txt", "Content to be deleted later on.")
	require.NoError(t, err)
	require.Positive(t, env.index.Len())

	deleted, err := env.pipeline.DeleteDocument(ctx, result.Document.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Zero(t, env.index.Len())

	_, err = env.pipeline.Status(ctx, result.Document.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	deleted, err = env.pipeline.DeleteDocument(ctx, result.Document.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
