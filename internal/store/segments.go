package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Segment is one retrievable unit of a document. VectorKey is the stable
// external key of the segment's vector index record; its uniqueness enforces
// the one-segment-one-record invariant.
type Segment struct {
	ID         int64
	DocumentID int64
	Content    string
	Position   int
	WordCount  int
	Tokens     int
	PageNumber int // 0 when unknown
	HasBBox    bool
	BBoxX      float64
	BBoxY      float64
	BBoxWidth  float64
	BBoxHeight float64
	VectorKey  string
	Status     string
	Error      string
}

// InsertSegments inserts all segments in one transaction, filling in ids.
func (s *Store) InsertSegments(ctx context.Context, segments []*Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_segments (document_id, content, position, word_count,
			tokens, page_number, bbox_x, bbox_y, bbox_width, bbox_height,
			vector_key, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		if seg.Status == "" {
			seg.Status = StatusPending
		}
		res, err := stmt.ExecContext(ctx,
			seg.DocumentID, seg.Content, seg.Position, seg.WordCount, seg.Tokens,
			nullableInt(seg.PageNumber),
			nullableBBox(seg.HasBBox, seg.BBoxX), nullableBBox(seg.HasBBox, seg.BBoxY),
			nullableBBox(seg.HasBBox, seg.BBoxWidth), nullableBBox(seg.HasBBox, seg.BBoxHeight),
			seg.VectorKey, seg.Status, seg.Error)
		if err != nil {
			return fmt.Errorf("inserting segment %d: %w", seg.Position, err)
		}
		if seg.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetSegmentStatus updates one segment's status and error detail.
func (s *Store) SetSegmentStatus(ctx context.Context, id int64, status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE document_segments SET status = ?, error = ? WHERE id = ?`, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("updating segment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("segment %d: %w", id, ErrNotFound)
	}
	return nil
}

const segmentColumns = `id, document_id, content, position, word_count, tokens,
	page_number, bbox_x, bbox_y, bbox_width, bbox_height, vector_key, status, error`

// SegmentByVectorKey fetches the segment owning a vector index record.
func (s *Store) SegmentByVectorKey(ctx context.Context, key string) (*Segment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM document_segments WHERE vector_key = ?`, key)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("segment with vector key %s: %w", key, ErrNotFound)
	}
	return seg, err
}

// SegmentByID fetches one segment by primary key.
func (s *Store) SegmentByID(ctx context.Context, id int64) (*Segment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM document_segments WHERE id = ?`, id)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("segment %d: %w", id, ErrNotFound)
	}
	return seg, err
}

// SegmentsByDocument returns a document's segments in position order.
func (s *Store) SegmentsByDocument(ctx context.Context, documentID int64) ([]*Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM document_segments
		WHERE document_id = ? ORDER BY position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// SegmentVectorKeys returns the vector index keys of a document's segments,
// used for cascading deletes into the vector index.
func (s *Store) SegmentVectorKeys(ctx context.Context, documentID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vector_key FROM document_segments WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying vector keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// CountSegments returns the total segment count and how many of them have a
// stored embedding (status completed).
func (s *Store) CountSegments(ctx context.Context, documentID int64) (total, embedded int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM document_segments WHERE document_id = ?`,
		StatusCompleted, documentID).Scan(&total, &embedded)
	if err != nil {
		return 0, 0, fmt.Errorf("counting segments: %w", err)
	}
	return total, embedded, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSegment(row rowScanner) (*Segment, error) {
	seg := &Segment{}
	var page sql.NullInt64
	var x, y, w, h sql.NullFloat64
	err := row.Scan(&seg.ID, &seg.DocumentID, &seg.Content, &seg.Position,
		&seg.WordCount, &seg.Tokens, &page, &x, &y, &w, &h,
		&seg.VectorKey, &seg.Status, &seg.Error)
	if err != nil {
		return nil, err
	}
	seg.PageNumber = int(page.Int64)
	if x.Valid {
		seg.HasBBox = true
		seg.BBoxX, seg.BBoxY = x.Float64, y.Float64
		seg.BBoxWidth, seg.BBoxHeight = w.Float64, h.Float64
	}
	return seg, nil
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableBBox(has bool, v float64) any {
	if !has {
		return nil
	}
	return v
}
