package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Document is one uploaded file version. A document is immutable once
// completed; re-uploading identical content with the same name creates a new
// version row instead of mutating this one.
type Document struct {
	ID           int64
	DatasetID    int64
	Name         string
	OriginalName string
	FileHash     string
	Version      int
	MimeType     string
	Size         int64
	FilePath     string
	Status       string
	Error        string
	CreatedAt    time.Time
}

// EnsureDataset returns the id of the named dataset, creating it if needed.
func (s *Store) EnsureDataset(ctx context.Context, name, description string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM datasets WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("querying dataset: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return 0, fmt.Errorf("creating dataset: %w", err)
	}
	return res.LastInsertId()
}

// DatasetExists reports whether a dataset row exists.
func (s *Store) DatasetExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM datasets WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying dataset: %w", err)
	}
	return true, nil
}

// NextVersion returns max(version)+1 across documents with the same content
// hash and original name.
func (s *Store) NextVersion(ctx context.Context, fileHash, originalName string) (int, error) {
	var maxVersion sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM documents WHERE file_hash = ? AND original_name = ?`,
		fileHash, originalName).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("querying max version: %w", err)
	}
	return int(maxVersion.Int64) + 1, nil
}

// CreateDocument inserts a document row and fills in its id and creation time.
func (s *Store) CreateDocument(ctx context.Context, d *Document) error {
	if d.Status == "" {
		d.Status = StatusPending
	}
	d.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (dataset_id, name, original_name, file_hash, version,
			mime_type, size, file_path, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DatasetID, d.Name, d.OriginalName, d.FileHash, d.Version,
		d.MimeType, d.Size, d.FilePath, d.Status, d.Error, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

// GetDocument fetches one document by id.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	d := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, dataset_id, name, original_name, file_hash, version,
			mime_type, size, file_path, status, error, created_at
		FROM documents WHERE id = ?`, id).Scan(
		&d.ID, &d.DatasetID, &d.Name, &d.OriginalName, &d.FileHash, &d.Version,
		&d.MimeType, &d.Size, &d.FilePath, &d.Status, &d.Error, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	return d, nil
}

// SetDocumentStatus updates a document's processing status and error detail.
func (s *Store) SetDocumentStatus(ctx context.Context, id int64, status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ? WHERE id = ?`, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDocument removes a document; segments and workspace links cascade.
// Returns false when the document did not exist.
func (s *Store) DeleteDocument(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateWorkspace inserts a workspace and returns its id.
func (s *Store) CreateWorkspace(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO workspaces (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("creating workspace: %w", err)
	}
	return res.LastInsertId()
}

// AddDocumentToWorkspace links a document into a workspace. Idempotent.
func (s *Store) AddDocumentToWorkspace(ctx context.Context, documentID, workspaceID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO document_workspaces (document_id, workspace_id)
		VALUES (?, ?)`, documentID, workspaceID)
	if err != nil {
		return fmt.Errorf("linking document to workspace: %w", err)
	}
	return nil
}

// DocumentIDsForWorkspace resolves a workspace scope to its document id set.
func (s *Store) DocumentIDsForWorkspace(ctx context.Context, workspaceID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id FROM document_workspaces
		WHERE workspace_id = ? ORDER BY document_id`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying workspace documents: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
