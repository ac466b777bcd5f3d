package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lmsbridge/canvas-mcp/internal/canvas"
	"github.com/lmsbridge/canvas-mcp/internal/classifier"
	"github.com/lmsbridge/canvas-mcp/internal/embedding"
	"github.com/lmsbridge/canvas-mcp/internal/indexer"
	"github.com/lmsbridge/canvas-mcp/internal/storage"
	"github.com/lmsbridge/canvas-mcp/internal/vectorstore"
)

// makeSyncHandler creates the sync_index tool handler. A concurrent trigger
// is reported as a skip rather than an error so clients treat it as normal
// operation, matching the drop-not-queue run semantics.
func makeSyncHandler(ix *indexer.Indexer) func(
	context.Context, *mcp.CallToolRequest, SyncIndexInput,
) (*mcp.CallToolResult, SyncIndexOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SyncIndexInput) (
		*mcp.CallToolResult, SyncIndexOutput, error,
	) {
		report, err := ix.Run(ctx, input.Force)
		if err != nil {
			if errors.Is(err, indexer.ErrRunActive) {
				return nil, SyncIndexOutput{
					Skipped: true,
					Message: "An indexing run is already active. The trigger was dropped; try again later.",
				}, nil
			}
			return nil, SyncIndexOutput{}, fmt.Errorf("sync failed: %w", err)
		}

		out := SyncIndexOutput{
			Skipped:        report.Skipped,
			Message:        report.SkipReason,
			CoursesUpdated: report.CoursesUpdated,
			CoursesFresh:   report.CoursesFresh,
			TotalChunks:    report.TotalChunks,
			Duration:       report.Duration.Round(time.Millisecond).String(),
		}
		for _, item := range report.Failed() {
			out.Failures = append(out.Failures, SyncFailure{
				CourseID:   item.CourseID,
				CourseName: item.CourseName,
				Kind:       item.Kind,
				Reason:     item.Reason,
			})
		}
		return nil, out, nil
	}
}

// makeListCoursesHandler creates the list_courses tool handler. Courses are
// fetched live and classified per call; currency verdicts are never cached.
func makeListCoursesHandler(client *canvas.Client) func(
	context.Context, *mcp.CallToolRequest, ListCoursesInput,
) (*mcp.CallToolResult, ListCoursesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListCoursesInput) (
		*mcp.CallToolResult, ListCoursesOutput, error,
	) {
		filter := input.Filter
		if filter == "" {
			filter = "current"
		}

		courses, err := client.ListAllCourses(ctx)
		if err != nil {
			return nil, ListCoursesOutput{}, fmt.Errorf("list courses: %w", err)
		}

		buckets := classifier.Categorize(courses, time.Now())

		var entries []CourseEntry
		switch filter {
		case "current":
			for _, c := range buckets.Current {
				entry := courseEntry(c.Course)
				entry.Confidence = c.Verdict.Confidence
				entry.Reason = c.Verdict.Reason
				entries = append(entries, entry)
			}
		case "upcoming":
			for _, c := range buckets.Upcoming {
				entries = append(entries, courseEntry(c))
			}
		case "recently_completed":
			for _, c := range buckets.RecentlyCompleted {
				entries = append(entries, courseEntry(c))
			}
		case "all_active":
			for _, c := range buckets.AllActive {
				entries = append(entries, courseEntry(c))
			}
		default:
			return nil, ListCoursesOutput{}, fmt.Errorf("unknown filter %q", filter)
		}

		if entries == nil {
			entries = []CourseEntry{}
		}
		return nil, ListCoursesOutput{
			Courses: entries,
			Count:   len(entries),
			Filter:  filter,
		}, nil
	}
}

func courseEntry(c canvas.Course) CourseEntry {
	entry := CourseEntry{
		ID:         c.ID,
		Name:       c.Name,
		CourseCode: c.CourseCode,
		StartAt:    c.StartAt,
		EndAt:      c.EndAt,
	}
	if c.Term != nil {
		entry.Term = c.Term.Name
	}
	return entry
}

// makeSearchHandler creates the search_content tool handler.
// Search flow:
// 1. Generate an embedding for the query text
// 2. Vector search, optionally filtered to one course
// 3. Drop results below the score threshold
// 4. Resolve course names from the local cache
func makeSearchHandler(chunks *vectorstore.QdrantStore, embedder *embedding.Embedder, records *storage.Store) func(
	context.Context, *mcp.CallToolRequest, SearchContentInput,
) (*mcp.CallToolResult, SearchContentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchContentInput) (
		*mcp.CallToolResult, SearchContentOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}
		minScore := input.MinScore
		if minScore <= 0 {
			minScore = 0.4
		}

		vectors, err := embedder.Embed(ctx, []string{input.Query})
		if err != nil {
			return nil, SearchContentOutput{}, fmt.Errorf("embed query: %w", err)
		}

		scored, err := chunks.Search(ctx, vectors[0], maxResults, input.CourseID)
		if err != nil {
			return nil, SearchContentOutput{}, fmt.Errorf("search failed: %w", err)
		}

		names := make(map[int64]string)
		results := make([]ContentResult, 0, len(scored))
		for _, sc := range scored {
			if sc.Score < minScore {
				continue
			}
			name, ok := names[sc.Chunk.CourseID]
			if !ok {
				// Best effort; an unresolved name is not worth failing the search.
				name, _ = records.CourseName(ctx, sc.Chunk.CourseID)
				names[sc.Chunk.CourseID] = name
			}
			results = append(results, ContentResult{
				CourseID:   sc.Chunk.CourseID,
				CourseName: name,
				SourceType: string(sc.Chunk.SourceType),
				SourceID:   sc.Chunk.SourceID,
				Score:      sc.Score,
				Content:    sc.Chunk.Content,
			})
		}

		if len(results) == 0 {
			return nil, SearchContentOutput{
				Results: []ContentResult{},
				Message: "No matching content found. Try broader search terms, or run sync_index first.",
			}, nil
		}
		return nil, SearchContentOutput{Results: results}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(records *storage.Store, chunks *vectorstore.QdrantStore, window time.Duration) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		stats, err := records.Stats(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("cache stats: %w", err)
		}

		chunkCount, err := chunks.CountChunks(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("count chunks: %w", err)
		}

		out := StatusOutput{
			Courses:         stats.Courses,
			Assignments:     stats.Assignments,
			Files:           stats.Files,
			Syllabi:         stats.Syllabi,
			TotalChunks:     int(chunkCount),
			Stale:           true,
			StalenessWindow: window.String(),
		}
		if stats.LastIndexed != nil {
			out.LastIndexed = stats.LastIndexed.UTC().Format(time.RFC3339)
			out.Stale = time.Since(*stats.LastIndexed) >= window
		}
		return nil, out, nil
	}
}
