// Package retrieve implements hybrid search over ingested documents: vector
// similarity blended with a lexical relevance signal, optionally scoped to a
// workspace.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/knoxlab/docquery/internal/store"
	"github.com/knoxlab/docquery/internal/vectorindex"
)

// Options controls scoring and fetch behavior.
type Options struct {
	// TopK is the default result count when the caller passes limit <= 0.
	TopK int
	// VectorWeight and LexicalWeight blend the two signals; they need not sum
	// to one, but the defaults do.
	VectorWeight  float64
	LexicalWeight float64
	// ScoreThreshold drops results whose combined score falls below it.
	ScoreThreshold float64
	// OverfetchFactor multiplies the requested limit when querying the index,
	// capped at MaxFetch, so threshold filtering has candidates to discard.
	OverfetchFactor int
	MaxFetch        int
}

// DefaultOptions favors the vector signal slightly over the lexical one.
func DefaultOptions() Options {
	return Options{
		TopK:            3,
		VectorWeight:    0.6,
		LexicalWeight:   0.4,
		ScoreThreshold:  0.4,
		OverfetchFactor: 10,
		MaxFetch:        100,
	}
}

func (o Options) Validate() error {
	if o.TopK <= 0 {
		return errors.New("top k must be positive")
	}
	if o.VectorWeight < 0 || o.LexicalWeight < 0 {
		return errors.New("weights must be non-negative")
	}
	if o.VectorWeight+o.LexicalWeight == 0 {
		return errors.New("at least one weight must be positive")
	}
	if o.ScoreThreshold < 0 || o.ScoreThreshold > 1 {
		return errors.New("score threshold must be in [0, 1]")
	}
	if o.OverfetchFactor <= 0 || o.MaxFetch <= 0 {
		return errors.New("overfetch factor and max fetch must be positive")
	}
	return nil
}

// Result is one scored search hit enriched with segment and document rows.
type Result struct {
	SegmentID    int64
	DocumentID   int64
	DocumentName string
	Content      string
	PageNumber   int // 0 when unknown
	HasBBox      bool
	BBoxX        float64
	BBoxY        float64
	BBoxWidth    float64
	BBoxHeight   float64

	Similarity float64 // vector signal in [0, 1]
	Lexical    float64 // lexical signal in [0, 1]
	Score      float64 // weighted blend, compared against ScoreThreshold
}

// QueryEmbedder produces the query vector. Satisfied by *embedding.Embedder.
type QueryEmbedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever runs hybrid searches against the vector index and the store.
type Retriever struct {
	store    *store.Store
	index    vectorindex.Index
	embedder QueryEmbedder
	opts     Options
	logger   *slog.Logger
}

func New(st *store.Store, index vectorindex.Index, embedder QueryEmbedder, opts Options, logger *slog.Logger) (*Retriever, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retriever options: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: st, index: index, embedder: embedder, opts: opts, logger: logger}, nil
}

// Search returns up to limit results for the query, ordered by descending
// combined score. A workspaceID > 0 scopes the search to that workspace's
// documents; a workspace with no documents yields no results rather than
// falling back to an unscoped search. limit <= 0 uses Options.TopK.
func (r *Retriever) Search(ctx context.Context, query string, limit int, workspaceID int64) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}
	if limit <= 0 {
		limit = r.opts.TopK
	}

	var docIDs []int64
	scoped := workspaceID > 0
	if scoped {
		ids, err := r.store.DocumentIDsForWorkspace(ctx, workspaceID)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace %d: %w", workspaceID, err)
		}
		if len(ids) == 0 {
			return []Result{}, nil
		}
		docIDs = ids
	}

	vectors, err := r.embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vector := vectors[0]

	fetch := limit * r.opts.OverfetchFactor
	if fetch > r.opts.MaxFetch {
		fetch = r.opts.MaxFetch
	}

	var hits []vectorindex.Hit
	if scoped {
		hits, err = r.queryPerDocument(ctx, vector, fetch, docIDs)
	} else {
		hits, err = r.index.Query(ctx, vector, fetch, nil)
	}
	if err != nil {
		return nil, err
	}

	results, err := r.scoreAndEnrich(ctx, query, hits, docIDs)
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].SegmentID < results[j].SegmentID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// queryPerDocument runs one filtered query per scoped document concurrently
// and merges the hits. Querying per document instead of with one multi-value
// filter keeps every document represented in the candidate pool even when one
// document dominates the similarity ranking.
func (r *Retriever) queryPerDocument(ctx context.Context, vector []float32, fetch int, docIDs []int64) ([]vectorindex.Hit, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		all      []vectorindex.Hit
		firstErr error
	)
	for _, id := range docIDs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			filter := &vectorindex.Filter{DocumentIDs: []string{strconv.FormatInt(id, 10)}}
			hits, err := r.index.Query(ctx, vector, fetch, filter)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("querying document %d: %w", id, err)
				}
				return
			}
			all = append(all, hits...)
		}(id)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

// scoreAndEnrich turns raw hits into results: blend scores, apply the
// threshold, and attach segment and document rows. Hits whose segment or
// document row has disappeared are dropped with a warning instead of failing
// the whole query.
func (r *Retriever) scoreAndEnrich(ctx context.Context, query string, hits []vectorindex.Hit, scope []int64) ([]Result, error) {
	inScope := make(map[int64]bool, len(scope))
	for _, id := range scope {
		inScope[id] = true
	}

	seen := make(map[string]bool, len(hits))
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if seen[hit.Key] {
			continue
		}
		seen[hit.Key] = true

		sim := vectorindex.Similarity(hit.Distance)
		lex := LexicalRelevance(query, hit.Text)
		score := sim*r.opts.VectorWeight + lex*r.opts.LexicalWeight
		if score < r.opts.ScoreThreshold {
			continue
		}

		seg, err := r.store.SegmentByVectorKey(ctx, hit.Key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				r.logger.Warn("dropping orphaned hit", "vector_key", hit.Key)
				continue
			}
			return nil, fmt.Errorf("loading segment for hit %s: %w", hit.Key, err)
		}
		if len(scope) > 0 && !inScope[seg.DocumentID] {
			continue
		}
		doc, err := r.store.GetDocument(ctx, seg.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				r.logger.Warn("dropping hit from deleted document", "document_id", seg.DocumentID)
				continue
			}
			return nil, fmt.Errorf("loading document %d: %w", seg.DocumentID, err)
		}

		results = append(results, Result{
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
			Similarity:   sim,
			Lexical:      lex,
			Score:        score,
		})
	}
	return results, nil
}
