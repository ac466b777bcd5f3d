// Package main provides the sync CLI for the Canvas course index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lmsbridge/canvas-mcp/internal/canvas"
	"github.com/lmsbridge/canvas-mcp/internal/chunker"
	"github.com/lmsbridge/canvas-mcp/internal/embedding"
	"github.com/lmsbridge/canvas-mcp/internal/indexer"
	"github.com/lmsbridge/canvas-mcp/internal/storage"
	"github.com/lmsbridge/canvas-mcp/internal/vectorstore"
)

var force bool

var rootCmd = &cobra.Command{
	Use:   "canvas-sync",
	Short: "Canvas course indexing tool",
	Long:  "CLI tool for managing the local Canvas course index in SQLite and Qdrant",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index course content from Canvas",
	Long: `Fetches active courses and indexes their syllabi, assignments, and files.

This command:
1. Connects to Qdrant and the local record cache
2. Fetches active courses from Canvas
3. Skips courses whose cached rows are still fresh (unless --force)
4. Invalidates and re-embeds content for stale courses
5. Stores rows in SQLite and chunks in Qdrant

Environment variables:
  CANVAS_BASE_URL  Canvas instance URL, e.g. https://school.instructure.com (required)
  CANVAS_TOKEN     Canvas API access token (required)
  QDRANT_HOST      Qdrant hostname (default: localhost)
  QDRANT_PORT      Qdrant gRPC port (default: 6334)
  CACHE_DIR        Directory for the SQLite cache (default: .)
  OPENAI_API_KEY   OpenAI API key for embeddings (required)`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&force, "force", true, "re-index even when the cache is fresh")
	rootCmd.AddCommand(syncCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	fmt.Println("Starting sync...")
	fmt.Println()

	canvasBaseURL := os.Getenv("CANVAS_BASE_URL")
	canvasToken := os.Getenv("CANVAS_TOKEN")
	if canvasBaseURL == "" || canvasToken == "" {
		return fmt.Errorf("CANVAS_BASE_URL and CANVAS_TOKEN must be set")
	}
	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	cacheDir := getEnv("CACHE_DIR", ".")

	// 1. Connect to Qdrant
	fmt.Printf("Connecting to Qdrant at %s:%d...\n", qdrantHost, qdrantPort)
	chunks, err := vectorstore.NewQdrantStore(qdrantHost, qdrantPort)
	if err != nil {
		return fmt.Errorf("Failed to connect to Qdrant: %w", err)
	}
	defer chunks.Close()

	if err := chunks.Health(ctx); err != nil {
		return fmt.Errorf("Qdrant health check failed: %w", err)
	}
	fmt.Println("Qdrant healthy")

	if err := chunks.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("Failed to ensure collection: %w", err)
	}

	// 2. Open the local record cache
	records, err := storage.Open(cacheDir)
	if err != nil {
		return fmt.Errorf("Failed to open record cache: %w", err)
	}
	defer records.Close()

	// 3. Initialize embedding client
	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return fmt.Errorf("Failed to create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // Use default batch size

	// 4. Canvas client
	client := canvas.NewClient(canvasBaseURL, canvasToken)

	// 5. Run the indexer
	fmt.Println()
	fmt.Println("Indexing courses from Canvas...")
	ix := indexer.New(client, records, chunks, embedder, chunker.New(), slog.Default(), indexer.Config{})

	report, err := ix.Run(ctx, force)
	if err != nil {
		return fmt.Errorf("Indexing failed: %w", err)
	}

	// 6. Print results
	fmt.Println()
	if report.Skipped {
		fmt.Println("Sync skipped:", report.SkipReason)
		return nil
	}

	fmt.Println("Sync complete!")
	fmt.Printf("  Courses: %d updated, %d fresh, %d total\n",
		report.CoursesUpdated, report.CoursesFresh, report.CoursesTotal)
	fmt.Printf("  Chunks: %d\n", report.TotalChunks)
	fmt.Printf("  Duration: %s\n", report.Duration.Round(time.Second))

	if failed := report.Failed(); len(failed) > 0 {
		fmt.Println()
		fmt.Println("Failed items:")
		for _, item := range failed {
			fmt.Printf("  - %s (%s): %s\n", item.CourseName, item.Kind, item.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))

	return nil
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
