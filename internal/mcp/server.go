package mcp

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/knoxlab/docquery/internal/ingest"
	"github.com/knoxlab/docquery/internal/retrieve"
	"github.com/knoxlab/docquery/internal/store"
)

// Server wraps the MCP server with its pipeline dependencies.
type Server struct {
	server    *mcp.Server
	pipeline  *ingest.Pipeline
	retriever *retrieve.Retriever
	store     *store.Store
}

// Config holds server dependencies.
type Config struct {
	Pipeline  *ingest.Pipeline
	Retriever *retrieve.Retriever
	Store     *store.Store
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "docquery-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search ingested documents semantically. Returns ranked segments with scores and page positions.",
	}, makeSearchHandler(cfg.Retriever))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Ingest a document file into a dataset: extract text, segment, embed, and index for retrieval.",
	}, makeIngestHandler(cfg.Pipeline))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "document_status",
		Description: "Get the processing status of an ingested document, including segment and embedding counts.",
	}, makeStatusHandler(cfg.Pipeline))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document and all of its segments and vector records.",
	}, makeDeleteHandler(cfg.Pipeline))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_citations",
		Description: "Extract the [n] citation markers from generated answer text and resolve them to document segments.",
	}, makeCitationsHandler(cfg.Store))

	return &Server{
		server:    server,
		pipeline:  cfg.Pipeline,
		retriever: cfg.Retriever,
		store:     cfg.Store,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns a Streamable HTTP handler for the server, mountable on
// any mux path. Stateless mode disables session management; this server's
// tools are all request/response, so stateless is the mode serve uses.
func (s *Server) HTTPHandler(stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}
