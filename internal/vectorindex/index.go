// Package vectorindex abstracts the persistent similarity store holding
// (key, vector, text, metadata) records for document segments.
package vectorindex

import "context"

// Meta is the closed metadata schema attached to every record. Values are
// normalized at the boundary: absent strings become empty, never null, because
// the underlying engine cannot persist nulls or composite values.
type Meta struct {
	DocumentID string
	SegmentID  string
	PageNumber int
}

// Record is one vector index entry. Key is the segment's stable external key.
type Record struct {
	Key    string
	Vector []float32
	Text   string
	Meta   Meta
}

// Filter restricts a query to records whose document id is in the given set.
// An empty set means unfiltered.
type Filter struct {
	DocumentIDs []string
}

// Hit is one similarity query result. Distance is cosine distance in [0, 2];
// callers convert to similarity via Similarity.
type Hit struct {
	Key      string
	Distance float64
	Text     string
	Meta     Meta
}

// Index is the vector store contract. Upsert is idempotent by key, Query
// returns hits ordered by ascending distance, Delete removes by key.
type Index interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, k int, filter *Filter) ([]Hit, error)
	Delete(ctx context.Context, keys []string) error
	Close() error
}

// Similarity converts a cosine distance d in [0, 2] to a similarity in [0, 1].
func Similarity(distance float64) float64 {
	return 1 - distance/2
}
