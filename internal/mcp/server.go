package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lmsbridge/canvas-mcp/internal/canvas"
	"github.com/lmsbridge/canvas-mcp/internal/embedding"
	"github.com/lmsbridge/canvas-mcp/internal/indexer"
	"github.com/lmsbridge/canvas-mcp/internal/storage"
	"github.com/lmsbridge/canvas-mcp/internal/vectorstore"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Canvas   *canvas.Client
	Records  *storage.Store
	Chunks   *vectorstore.QdrantStore
	Embedder *embedding.Embedder
	Indexer  *indexer.Indexer
	// StalenessWindow is reported by get_index_status; it should match the
	// indexer configuration.
	StalenessWindow time.Duration
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "canvas-course-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	window := cfg.StalenessWindow
	if window <= 0 {
		window = indexer.DefaultStalenessWindow
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_index",
		Description: "Synchronize the local course index with the LMS. Skips work when the cache is fresh unless force is set. Only one sync runs at a time.",
	}, makeSyncHandler(cfg.Indexer))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_courses",
		Description: "List courses by currency: current (in progress now), upcoming (starting within 28 days), recently_completed (ended within 28 days), or all_active enrollments.",
	}, makeListCoursesHandler(cfg.Canvas))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_content",
		Description: "Search indexed course content (syllabi, assignment descriptions, file text) semantically. Optionally restrict to one course.",
	}, makeSearchHandler(cfg.Chunks, cfg.Embedder, cfg.Records))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current state of the course index: cached row counts, chunk count, last indexed time, and whether the index is stale.",
	}, makeStatusHandler(cfg.Records, cfg.Chunks, window))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
