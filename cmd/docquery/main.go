// Package main provides the docquery CLI: an MCP serving mode plus
// operational subcommands for ingesting, searching, and managing documents.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/knoxlab/docquery/internal/config"
	"github.com/knoxlab/docquery/internal/embedding"
	"github.com/knoxlab/docquery/internal/extract"
	"github.com/knoxlab/docquery/internal/ingest"
	mcpserver "github.com/knoxlab/docquery/internal/mcp"
	"github.com/knoxlab/docquery/internal/retrieve"
	"github.com/knoxlab/docquery/internal/segment"
	"github.com/knoxlab/docquery/internal/store"
	"github.com/knoxlab/docquery/internal/vectorindex"
)

var rootCmd = &cobra.Command{
	Use:   "docquery",
	Short: "Document ingestion and hybrid retrieval service",
	Long:  "Ingests documents into a vector index and serves hybrid semantic search over MCP or the command line",
}

func main() {
	rootCmd.AddCommand(serveCmd, ingestCmd, searchCmd, statusCmd, deleteCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired components shared by every subcommand.
type app struct {
	cfg       *config.Config
	store     *store.Store
	index     *vectorindex.Qdrant
	pipeline  *ingest.Pipeline
	retriever *retrieve.Retriever
}

func (a *app) Close() {
	a.index.Close()
	a.store.Close()
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	index, err := vectorindex.NewQdrant(cfg.QdrantHost, cfg.QdrantPort, cfg.Collection, embedding.Dimension)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connecting to Qdrant: %w", err)
	}
	if err := index.EnsureCollection(ctx); err != nil {
		index.Close()
		st.Close()
		return nil, fmt.Errorf("ensuring collection: %w", err)
	}

	client, err := embedding.NewClient(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	if err != nil {
		index.Close()
		st.Close()
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(client, cfg.EmbeddingBatch)

	splitter, err := segment.NewSplitter(cfg.Segmenter)
	if err != nil {
		index.Close()
		st.Close()
		return nil, err
	}

	logger := slog.Default()
	extractors := extract.NewRegistry(logger)
	pipeline := ingest.NewPipeline(extractors, splitter, embedder, index, st, cfg.UploadDir, logger)

	retriever, err := retrieve.New(st, index, embedder, cfg.Retrieval, logger)
	if err != nil {
		index.Close()
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: st, index: index, pipeline: pipeline, retriever: retriever}, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Serves the ingestion and retrieval tools over MCP.

Stdio mode (default) runs the MCP server on stdin/stdout with a background
HTTP health endpoint. Setting SERVER_MODE=true serves MCP over streamable
HTTP instead, for remote clients.

Environment variables:
  QDRANT_HOST      Qdrant hostname (default: localhost)
  QDRANT_PORT      Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY   API key for the embedding service (required)
  OPENAI_BASE_URL  Alternate OpenAI-compatible endpoint (optional)
  DB_PATH          SQLite database path (default: docquery.db)
  UPLOAD_DIR       Directory for stored document files (default: uploads)
  PORT             HTTP port (default: 8080)
  SERVER_MODE      "true" for HTTP mode, otherwise stdio`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcpserver.NewServer(&mcpserver.Config{
		Pipeline:  a.pipeline,
		Retriever: a.retriever,
		Store:     a.store,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", mcpserver.NewLandingHandler())
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(a.index))
	mux.Handle("/mcp", server.HTTPHandler(true))

	addr := "0.0.0.0:" + a.cfg.Port
	if a.cfg.ServerMode {
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		return http.ListenAndServe(addr, mux)
	}

	go func() {
		log.Printf("Starting health server on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()

	log.Println("Starting DocQuery MCP server (stdio mode)...")
	return server.Run(ctx)
}

var (
	ingestDataset     int64
	ingestDatasetName string
	ingestMimeType    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest document files into a dataset",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().Int64Var(&ingestDataset, "dataset", 0, "dataset id to ingest into")
	ingestCmd.Flags().StringVar(&ingestDatasetName, "dataset-name", "", "dataset name (created if missing; alternative to --dataset)")
	ingestCmd.Flags().StringVar(&ingestMimeType, "mime-type", "", "MIME type override (default: by file extension)")

	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default: configured top-k)")
	searchCmd.Flags().Int64Var(&searchWorkspace, "workspace", 0, "workspace id to scope the search to")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	datasetID := ingestDataset
	if datasetID == 0 {
		if ingestDatasetName == "" {
			return fmt.Errorf("either --dataset or --dataset-name is required")
		}
		datasetID, err = a.store.EnsureDataset(ctx, ingestDatasetName, "")
		if err != nil {
			return fmt.Errorf("ensuring dataset %q: %w", ingestDatasetName, err)
		}
	}

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		result, err := a.pipeline.ProcessDocument(ctx, f, filepath.Base(path), ingestMimeType, datasetID)
		f.Close()
		if err != nil && (result == nil || result.Document == nil) {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		doc := result.Document
		fmt.Printf("%s: document %d (v%d) %s, %d segments", doc.OriginalName, doc.ID, doc.Version, doc.Status, len(result.Report.Results))
		if failed := result.Report.Failed(); failed > 0 {
			fmt.Printf(" (%d failed)", failed)
		}
		fmt.Printf(" in %s\n", result.Duration.Round(time.Millisecond))
	}
	return nil
}

var (
	searchLimit     int
	searchWorkspace int64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search ingested documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.retriever.Search(ctx, args[0], searchLimit, searchWorkspace)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matching segments found.")
		return nil
	}

	for i, res := range results {
		fmt.Printf("%d. [%.3f] %s (document %d, segment %d", i+1, res.Score, res.DocumentName, res.DocumentID, res.SegmentID)
		if res.PageNumber > 0 {
			fmt.Printf(", page %d", res.PageNumber)
		}
		fmt.Println(")")
		fmt.Printf("   %s\n", res.Content)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status <document-id>",
	Short: "Show a document's processing status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var documentID int64
	if _, err := fmt.Sscanf(args[0], "%d", &documentID); err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.pipeline.Status(ctx, documentID)
	if err != nil {
		return err
	}

	fmt.Printf("Document:   %s\n", status.Name)
	fmt.Printf("Type:       %s\n", status.MimeType)
	fmt.Printf("Status:     %s\n", status.Status)
	if status.Error != "" {
		fmt.Printf("Error:      %s\n", status.Error)
	}
	fmt.Printf("Segments:   %d (%d embedded)\n", status.Segments, status.SegmentsWithEmbeddings)
	fmt.Printf("Created:    %s\n", status.CreatedAt.Format(time.RFC3339))
	return nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its vector records",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var documentID int64
	if _, err := fmt.Sscanf(args[0], "%d", &documentID); err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.pipeline.DeleteDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Printf("Document %d not found.\n", documentID)
		return nil
	}
	fmt.Printf("Document %d deleted.\n", documentID)
	return nil
}
