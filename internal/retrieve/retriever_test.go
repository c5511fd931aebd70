package retrieve

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoxlab/docquery/internal/store"
	"github.com/knoxlab/docquery/internal/vectorindex"
)

// fixedEmbedder returns the same vector for every query.
type fixedEmbedder struct {
	vector []float32
}

func (f *fixedEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vector
	}
	return out, nil
}

type searchEnv struct {
	store   *store.Store
	index   *vectorindex.Memory
	docs    map[string]int64 // name -> document id
	nextKey int
}

func newSearchEnv(t *testing.T) *searchEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &searchEnv{store: st, index: vectorindex.NewMemory(0), docs: map[string]int64{}}
}

// addSegment creates a document (once per name), one segment row, and the
// matching vector record.
func (e *searchEnv) addSegment(t *testing.T, docName, content string, vector []float32) *store.Segment {
	t.Helper()
	ctx := context.Background()

	docID, ok := e.docs[docName]
	if !ok {
		dsID, err := e.store.EnsureDataset(ctx, "ds", "")
		require.NoError(t, err)
		doc := &store.Document{
			DatasetID: dsID, Name: docName, OriginalName: docName,
			FileHash: "hash-" + docName, Version: 1, MimeType: "text/plain",
			FilePath: "/tmp/" + docName, Status: store.StatusCompleted,
		}
		require.NoError(t, e.store.CreateDocument(ctx, doc))
		docID = doc.ID
		e.docs[docName] = docID
	}

	e.nextKey++
	seg := &store.Segment{
		DocumentID: docID,
		Content:    content,
		VectorKey:  fmt.Sprintf("key-%d", e.nextKey),
		Status:     store.StatusCompleted,
		PageNumber: 1,
	}
	require.NoError(t, e.store.InsertSegments(ctx, []*store.Segment{seg}))

	require.NoError(t, e.index.Upsert(ctx, []vectorindex.Record{{
		Key:    seg.VectorKey,
		Vector: vector,
		Text:   content,
		Meta: vectorindex.Meta{
			DocumentID: fmt.Sprintf("%d", docID),
			SegmentID:  fmt.Sprintf("%d", seg.ID),
			PageNumber: 1,
		},
	}}))
	return seg
}

func (e *searchEnv) retriever(t *testing.T, opts Options) *Retriever {
	t.Helper()
	r, err := New(e.store, e.index, &fixedEmbedder{vector: []float32{1, 0, 0}}, opts, nil)
	require.NoError(t, err)
	return r
}

func TestSearch_RanksAndEnriches(t *testing.T) {
	env := newSearchEnv(t)
	ctx := context.Background()

	// Aligned with the query vector and lexically relevant.
	best := env.addSegment(t, "cats.txt", "cats and more cats", []float32{1, 0, 0})
	// Aligned vector, no lexical overlap.
	mid := env.addSegment(t, "cats.txt", "unrelated words entirely", []float32{0.95, 0.05, 0})
	// Orthogonal vector: similarity 0.5, low combined score.
	env.addSegment(t, "dogs.txt", "nothing in common", []float32{0, 1, 0})

	r := env.retriever(t, DefaultOptions())
	results, err := r.Search(ctx, "cats", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, best.ID, results[0].SegmentID)
	assert.Equal(t, mid.ID, results[1].SegmentID)
	assert.Greater(t, results[0].Score, results[1].Score)

	// Enrichment fields come from the relational rows.
	assert.Equal(t, "cats.txt", results[0].DocumentName)
	assert.Equal(t, "cats and more cats", results[0].Content)
	assert.Equal(t, 1, results[0].PageNumber)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Greater(t, results[0].Lexical, 0.0)
}

func TestSearch_ThresholdFilters(t *testing.T) {
	env := newSearchEnv(t)

	env.addSegment(t, "far.txt", "zzz", []float32{0, 1, 0})

	r := env.retriever(t, DefaultOptions())
	results, err := r.Search(context.Background(), "query words", 10, 0)
	require.NoError(t, err)
	// similarity 0.5 × 0.6 + lexical 0 × 0.4 = 0.3, below the 0.4 threshold.
	assert.Empty(t, results)
}

func TestSearch_LimitAndDefaultTopK(t *testing.T) {
	env := newSearchEnv(t)

	for i := 0; i < 8; i++ {
		env.addSegment(t, "doc.txt", fmt.Sprintf("matching content %d", i), []float32{1, 0, 0})
	}

	opts := DefaultOptions()
	r := env.retriever(t, opts)

	results, err := r.Search(context.Background(), "matching content", 5, 0)
	require.NoError(t, err)
	assert.Len(t, results, 5)

	// limit <= 0 falls back to TopK.
	results, err = r.Search(context.Background(), "matching content", 0, 0)
	require.NoError(t, err)
	assert.Len(t, results, opts.TopK)
}

func TestSearch_DeterministicTieOrder(t *testing.T) {
	env := newSearchEnv(t)

	// Identical vectors and identical content: scores tie exactly.
	s1 := env.addSegment(t, "a.txt", "tied content", []float32{1, 0, 0})
	s2 := env.addSegment(t, "b.txt", "tied content", []float32{1, 0, 0})

	r := env.retriever(t, DefaultOptions())
	results, err := r.Search(context.Background(), "tied content", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Ties break by document id then segment id.
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Less(t, results[0].DocumentID, results[1].DocumentID)
	assert.Equal(t, s1.ID, results[0].SegmentID)
	assert.Equal(t, s2.ID, results[1].SegmentID)
}

func TestSearch_WorkspaceScope(t *testing.T) {
	env := newSearchEnv(t)
	ctx := context.Background()

	inScope := env.addSegment(t, "in.txt", "shared matching text", []float32{1, 0, 0})
	env.addSegment(t, "out.txt", "shared matching text", []float32{1, 0, 0})

	wsID, err := env.store.CreateWorkspace(ctx, "ws")
	require.NoError(t, err)
	require.NoError(t, env.store.AddDocumentToWorkspace(ctx, env.docs["in.txt"], wsID))

	r := env.retriever(t, DefaultOptions())
	results, err := r.Search(ctx, "shared matching text", 10, wsID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, inScope.ID, results[0].SegmentID)
	assert.Equal(t, env.docs["in.txt"], results[0].DocumentID)
}

func TestSearch_EmptyWorkspaceShortCircuits(t *testing.T) {
	env := newSearchEnv(t)
	ctx := context.Background()

	env.addSegment(t, "doc.txt", "matching text", []float32{1, 0, 0})

	emptyWS, err := env.store.CreateWorkspace(ctx, "empty")
	require.NoError(t, err)

	r := env.retriever(t, DefaultOptions())
	results, err := r.Search(ctx, "matching text", 10, emptyWS)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_DropsOrphanedHits(t *testing.T) {
	env := newSearchEnv(t)
	ctx := context.Background()

	kept := env.addSegment(t, "doc.txt", "good matching content", []float32{1, 0, 0})

	// A vector record with no relational row behind it.
	require.NoError(t, env.index.Upsert(ctx, []vectorindex.Record{{
		Key:    "orphan-key",
		Vector: []float32{1, 0, 0},
		Text:   "good matching content",
		Meta:   vectorindex.Meta{DocumentID: "999", SegmentID: "999"},
	}}))

	r := env.retriever(t, DefaultOptions())
	results, err := r.Search(ctx, "good matching content", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, kept.ID, results[0].SegmentID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	env := newSearchEnv(t)
	r := env.retriever(t, DefaultOptions())

	_, err := r.Search(context.Background(), "   ", 5, 0)
	assert.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	bad := DefaultOptions()
	bad.TopK = 0
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.VectorWeight = -1
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.VectorWeight, bad.LexicalWeight = 0, 0
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.ScoreThreshold = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.OverfetchFactor = 0
	assert.Error(t, bad.Validate())
}
