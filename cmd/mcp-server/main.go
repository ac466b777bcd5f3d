// Package main provides the MCP server entry point for the Canvas course index.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lmsbridge/canvas-mcp/internal/canvas"
	"github.com/lmsbridge/canvas-mcp/internal/chunker"
	"github.com/lmsbridge/canvas-mcp/internal/embedding"
	"github.com/lmsbridge/canvas-mcp/internal/indexer"
	mcpserver "github.com/lmsbridge/canvas-mcp/internal/mcp"
	"github.com/lmsbridge/canvas-mcp/internal/storage"
	"github.com/lmsbridge/canvas-mcp/internal/vectorstore"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Configuration from environment
	canvasBaseURL := os.Getenv("CANVAS_BASE_URL")
	canvasToken := os.Getenv("CANVAS_TOKEN")
	if canvasBaseURL == "" || canvasToken == "" {
		log.Fatal("CANVAS_BASE_URL and CANVAS_TOKEN must be set")
	}
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	cacheDir := getEnv("CACHE_DIR", ".")
	stalenessWindow := time.Duration(getEnvInt("STALENESS_HOURS", 6)) * time.Hour
	runTimeout := time.Duration(getEnvInt("RUN_TIMEOUT_MINUTES", 30)) * time.Minute
	port := getEnv("PORT", "8080")

	// Canvas client
	client := canvas.NewClient(canvasBaseURL, canvasToken)

	// Local record cache
	records, err := storage.Open(cacheDir)
	if err != nil {
		log.Fatalf("failed to open record cache: %v", err)
	}
	defer records.Close()

	// Vector store
	chunks, err := vectorstore.NewQdrantStore(qdrantHost, qdrantPort)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer chunks.Close()

	if err := chunks.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	// Embedding client
	embeddingClient, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // Use default batch size

	// Indexer behind the sync_index tool
	ix := indexer.New(client, records, chunks, embedder, chunker.New(), slog.Default(), indexer.Config{
		StalenessWindow: stalenessWindow,
		RunTimeout:      runTimeout,
	})

	// Create MCP server
	server := mcpserver.NewServer(&mcpserver.Config{
		Canvas:          client,
		Records:         records,
		Chunks:          chunks,
		Embedder:        embedder,
		Indexer:         ix,
		StalenessWindow: stalenessWindow,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", mcpserver.NewLandingHandler())
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(chunks))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	// Server mode serves MCP over HTTP; the default is stdio for local clients.
	serverMode := getEnv("SERVER_MODE", "false") == "true"

	if serverMode {
		addr := "0.0.0.0:" + port
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	} else {
		// Health endpoint stays up in the background for local testing.
		go func() {
			addr := "0.0.0.0:" + port
			log.Printf("Starting health server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("Health server error: %v", err)
			}
		}()

		log.Println("Starting Canvas Course MCP Server (stdio mode)...")
		if err := server.Run(ctx); err != nil {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
