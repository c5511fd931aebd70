// Package mcp exposes the ingestion and retrieval pipeline as Model Context
// Protocol tools.
package mcp

import "time"

// SearchKnowledgeInput defines the input parameters for the search_knowledge tool.
type SearchKnowledgeInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The search query to run against ingested documents"`
	// Limit is the maximum number of segments to return.
	Limit int `json:"limit,omitempty" jsonschema:"minimum=1,maximum=20,default=3,description=Maximum number of segments to return"`
	// WorkspaceID restricts the search to one workspace's documents.
	WorkspaceID int64 `json:"workspace_id,omitempty" jsonschema:"description=Optional workspace id to scope the search to"`
}

// SearchKnowledgeOutput contains the ranked search results.
type SearchKnowledgeOutput struct {
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching segments found").
	Message string `json:"message,omitempty"`
}

// SearchResult is one ranked segment match.
type SearchResult struct {
	SegmentID    int64   `json:"segment_id"`
	DocumentID   int64   `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	Similarity   float64 `json:"similarity"`
	PageNumber   int     `json:"page_number,omitempty"`
	BBox         *BBox   `json:"bbox,omitempty"`
}

// BBox is a positional bounding box in page coordinates.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IngestDocumentInput defines the input parameters for the ingest_document tool.
type IngestDocumentInput struct {
	// Path is the local filesystem path of the file to ingest.
	Path string `json:"path" jsonschema:"required,description=Local path of the document file to ingest"`
	// DatasetID is the dataset the document belongs to.
	DatasetID int64 `json:"dataset_id" jsonschema:"required,description=Id of the dataset the document belongs to"`
	// MimeType overrides extension-based type detection when set.
	MimeType string `json:"mime_type,omitempty" jsonschema:"description=Optional MIME type override"`
}

// IngestDocumentOutput reports the outcome of one ingestion call.
type IngestDocumentOutput struct {
	DocumentID     int64  `json:"document_id"`
	Name           string `json:"name"`
	Version        int    `json:"version"`
	Status         string `json:"status"`
	Segments       int    `json:"segments"`
	FailedSegments int    `json:"failed_segments"`
	Error          string `json:"error,omitempty"`
	DurationMS     int64  `json:"duration_ms"`
}

// DocumentStatusInput defines the input parameters for the document_status tool.
type DocumentStatusInput struct {
	DocumentID int64 `json:"document_id" jsonschema:"required,description=Id of the document to inspect"`
}

// DocumentStatusOutput is the processing state of one document.
type DocumentStatusOutput struct {
	Found                  bool      `json:"found"`
	Status                 string    `json:"status,omitempty"`
	Error                  string    `json:"error,omitempty"`
	Name                   string    `json:"name,omitempty"`
	MimeType               string    `json:"mime_type,omitempty"`
	Segments               int       `json:"segments"`
	SegmentsWithEmbeddings int       `json:"segments_with_embeddings"`
	CreatedAt              time.Time `json:"created_at,omitzero"`
}

// DeleteDocumentInput defines the input parameters for the delete_document tool.
type DeleteDocumentInput struct {
	DocumentID int64 `json:"document_id" jsonschema:"required,description=Id of the document to delete"`
}

// DeleteDocumentOutput reports whether the document existed and was removed.
type DeleteDocumentOutput struct {
	Deleted bool `json:"deleted"`
}

// ExtractCitationsInput defines the input parameters for the extract_citations
// tool. SegmentIDs lists the segments behind the numbered references in the
// answer, in the order they were presented to the generator.
type ExtractCitationsInput struct {
	Answer     string  `json:"answer" jsonschema:"required,description=Generated answer text containing [n] citation markers"`
	SegmentIDs []int64 `json:"segment_ids" jsonschema:"required,description=Segment ids in the order they were presented to the generator"`
}

// ExtractCitationsOutput contains the referenced citations re-indexed 1..N.
type ExtractCitationsOutput struct {
	Citations []CitationOutput `json:"citations"`
}

// CitationOutput is one answer-to-segment reference.
type CitationOutput struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	DocumentID   int64   `json:"document_id"`
	DocumentName string  `json:"document_name"`
	SegmentID    int64   `json:"segment_id"`
	PageNumber   int     `json:"page_number,omitempty"`
	BBox         *BBox   `json:"bbox,omitempty"`
	Similarity   float64 `json:"similarity"`
}
