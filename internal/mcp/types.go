// Package mcp exposes the course index over the Model Context Protocol.
package mcp

import "time"

// SyncIndexInput defines the input parameters for the sync_index tool.
type SyncIndexInput struct {
	// Force bypasses the freshness gates and re-indexes everything.
	Force bool `json:"force,omitempty" jsonschema:"default=false,description=Re-index all courses even when the cache is still fresh"`
}

// SyncIndexOutput summarizes an indexing run.
type SyncIndexOutput struct {
	// Skipped is true when the run was skipped because the index is fresh
	// or because another run was already active.
	Skipped bool `json:"skipped"`
	// Message provides informational context (e.g. the skip reason).
	Message string `json:"message,omitempty"`
	// CoursesUpdated is the number of courses that were re-indexed.
	CoursesUpdated int `json:"courses_updated"`
	// CoursesFresh is the number of courses skipped as still fresh.
	CoursesFresh int `json:"courses_fresh"`
	// TotalChunks is the number of embedding chunks produced.
	TotalChunks int `json:"total_chunks"`
	// Duration is the wall-clock duration of the run.
	Duration string `json:"duration"`
	// Failures lists per-item failures; the run itself still succeeded.
	Failures []SyncFailure `json:"failures,omitempty"`
}

// SyncFailure describes one content item that failed during a run.
type SyncFailure struct {
	CourseID   int64  `json:"course_id"`
	CourseName string `json:"course_name"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason"`
}

// ListCoursesInput defines the input parameters for the list_courses tool.
type ListCoursesInput struct {
	// Filter selects which currency bucket to return.
	Filter string `json:"filter,omitempty" jsonschema:"enum=current,enum=upcoming,enum=recently_completed,enum=all_active,default=current,description=Which currency bucket of courses to return"`
}

// ListCoursesOutput contains the filtered course list.
type ListCoursesOutput struct {
	// Courses is the list of courses in the requested bucket.
	Courses []CourseEntry `json:"courses"`
	// Count is the number of courses returned.
	Count int `json:"count"`
	// Filter echoes the applied filter.
	Filter string `json:"filter"`
}

// CourseEntry is one course in a list_courses response.
type CourseEntry struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code"`
	// Term is the enrollment term name, when the LMS provided one.
	Term string `json:"term,omitempty"`
	// StartAt and EndAt are the explicit course dates, when present.
	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`
	// Confidence and Reason explain the currency verdict. Only populated
	// for the current bucket.
	Confidence int    `json:"confidence,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// SearchContentInput defines the input parameters for the search_content tool.
type SearchContentInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query over indexed course content"`
	// CourseID restricts the search to one course.
	CourseID int64 `json:"course_id,omitempty" jsonschema:"description=Restrict results to a single course"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of chunks to return"`
	// MinScore is the minimum similarity threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,default=0.4,description=Minimum similarity score threshold (0-1)"`
}

// SearchContentOutput contains the search results.
type SearchContentOutput struct {
	// Results is the list of matching content chunks.
	Results []ContentResult `json:"results"`
	// Message provides informational context (e.g. "No matching content").
	Message string `json:"message,omitempty"`
}

// ContentResult is a single chunk match from semantic search.
type ContentResult struct {
	// CourseID is the course the chunk belongs to.
	CourseID int64 `json:"course_id"`
	// CourseName resolves the course ID when the local cache knows it.
	CourseName string `json:"course_name,omitempty"`
	// SourceType is syllabus, assignment, or file.
	SourceType string `json:"source_type"`
	// SourceID identifies the assignment or file within the course.
	SourceID int64 `json:"source_id"`
	// Score is the similarity score (0-1).
	Score float64 `json:"score"`
	// Content is the chunk text.
	Content string `json:"content"`
}

// StatusInput defines the input parameters for the get_index_status tool.
// The tool takes no parameters.
type StatusInput struct{}

// StatusOutput describes the current state of the index.
type StatusOutput struct {
	// Courses, Assignments, Files, Syllabi are cached row counts.
	Courses     int `json:"courses"`
	Assignments int `json:"assignments"`
	Files       int `json:"files"`
	Syllabi     int `json:"syllabi"`
	// TotalChunks is the number of embedded chunks in the vector store.
	TotalChunks int `json:"total_chunks"`
	// LastIndexed is when the newest row was written, RFC 3339.
	LastIndexed string `json:"last_indexed,omitempty"`
	// Stale indicates the index is older than the staleness window and the
	// next tool-triggered sync will actually run.
	Stale bool `json:"stale"`
	// StalenessWindow is the configured freshness window.
	StalenessWindow string `json:"staleness_window"`
}
