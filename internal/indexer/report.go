package indexer

import (
	"time"

	"github.com/lmsbridge/canvas-mcp/internal/storage"
)

// Status is the typed outcome of one unit of indexing work.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ItemResult records the outcome of indexing one content item for a course.
// Failures carry the reason so operators can tell a partially degraded run
// from a fully synced one without scraping logs.
type ItemResult struct {
	CourseID   int64
	CourseName string
	Kind       string // course, syllabus, assignments, files
	Status     Status
	Reason     string // populated for skipped and failed
	Chunks     int    // embedding chunks produced by this item
}

// RunReport summarizes an indexing run.
type RunReport struct {
	Skipped    bool   // whole run skipped by the aggregate freshness gate
	SkipReason string

	StartedAt time.Time
	Duration  time.Duration

	CoursesTotal   int // courses fetched from the LMS
	CoursesFresh   int // courses skipped by the per-course freshness check
	CoursesUpdated int // courses that entered the update set
	TotalChunks    int

	Items []ItemResult

	StatsBefore *storage.Stats
	StatsAfter  *storage.Stats
}

// Failed returns the items that failed during the run.
func (r *RunReport) Failed() []ItemResult {
	var failed []ItemResult
	for _, item := range r.Items {
		if item.Status == StatusFailed {
			failed = append(failed, item)
		}
	}
	return failed
}

func (r *RunReport) record(item ItemResult) {
	r.Items = append(r.Items, item)
	r.TotalChunks += item.Chunks
}
