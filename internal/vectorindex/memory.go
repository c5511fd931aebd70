package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Index used in tests and as a reference for the
// contract's semantics: exact cosine distance, the same filter behavior, and
// idempotent upserts. Safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	records   map[string]Record
	dimension int
}

// NewMemory creates an empty in-memory index. dimension 0 adopts the
// dimension of the first upserted vector.
func NewMemory(dimension int) *Memory {
	return &Memory{
		records:   make(map[string]Record),
		dimension: dimension,
	}
}

// EnsureCollection implements Index; nothing to create in memory.
func (m *Memory) EnsureCollection(ctx context.Context) error {
	return nil
}

// Upsert implements Index. An existing key is replaced.
func (m *Memory) Upsert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range records {
		if m.dimension == 0 {
			m.dimension = len(r.Vector)
		}
		if len(r.Vector) != m.dimension {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(r.Vector), m.dimension)
		}
		m.records[r.Key] = r
	}
	return nil
}

// Query implements Index with an exact cosine distance scan.
func (m *Memory) Query(ctx context.Context, vector []float32, k int, filter *Filter) ([]Hit, error) {
	if m.dimension != 0 && len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), m.dimension)
	}

	var allowed map[string]bool
	if filter != nil && len(filter.DocumentIDs) > 0 {
		allowed = make(map[string]bool, len(filter.DocumentIDs))
		for _, id := range filter.DocumentIDs {
			allowed[id] = true
		}
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.records))
	for _, r := range m.records {
		if allowed != nil && !allowed[r.Meta.DocumentID] {
			continue
		}
		hits = append(hits, Hit{
			Key:      r.Key,
			Distance: cosineDistance(vector, r.Vector),
			Text:     r.Text,
			Meta:     r.Meta,
		})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Key < hits[j].Key
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete implements Index.
func (m *Memory) Delete(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.records, key)
	}
	return nil
}

// Close implements Index.
func (m *Memory) Close() error {
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// cosineDistance returns 1 - cos(a, b), in [0, 2]. Zero vectors are treated
// as maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
