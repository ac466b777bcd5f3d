// Package indexer synchronizes the local cache and vector store with the
// upstream LMS. Courses whose cached rows are still inside the staleness
// window are skipped; everything else is re-fetched, upserted, chunked, and
// embedded. Runs are strictly sequential and mutually exclusive.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lmsbridge/canvas-mcp/internal/canvas"
	"github.com/lmsbridge/canvas-mcp/internal/chunker"
	"github.com/lmsbridge/canvas-mcp/internal/storage"
	"github.com/lmsbridge/canvas-mcp/internal/vectorstore"
)

// DefaultStalenessWindow gates re-fetching of cached course data.
const DefaultStalenessWindow = 6 * time.Hour

// DefaultRunTimeout bounds a whole indexing run. A hung upstream call can
// otherwise stall the run indefinitely.
const DefaultRunTimeout = 30 * time.Minute

// ErrRunActive is returned when a run is triggered while another is still in
// flight. The trigger is dropped, not queued; the caller may retry later.
var ErrRunActive = errors.New("indexer: an indexing run is already active")

// CourseSource fetches course data from the upstream LMS.
// *canvas.Client implements it.
type CourseSource interface {
	ListActiveCourses(ctx context.Context) ([]canvas.Course, error)
	GetSyllabus(ctx context.Context, courseID int64) (string, error)
	ListAssignments(ctx context.Context, courseID int64) ([]canvas.Assignment, error)
	ListFiles(ctx context.Context, courseID int64) ([]canvas.File, error)
	FetchFileText(ctx context.Context, f canvas.File) (string, error)
}

// RecordStore is the local cache of indexed rows. *storage.Store implements it.
type RecordStore interface {
	Stats(ctx context.Context) (*storage.Stats, error)
	CourseFresh(ctx context.Context, courseID int64, window time.Duration, now time.Time) (bool, error)
	UpsertCourse(ctx context.Context, rec storage.CourseRecord, now time.Time) error
	UpsertAssignment(ctx context.Context, rec storage.AssignmentRecord, now time.Time) error
	UpsertFile(ctx context.Context, rec storage.FileRecord, now time.Time) error
	UpsertSyllabus(ctx context.Context, courseID int64, body string, now time.Time) error
}

// ChunkStore holds embedded chunks. *vectorstore.QdrantStore implements it.
type ChunkStore interface {
	DeleteByCourses(ctx context.Context, courseIDs []int64) error
	UpsertChunks(ctx context.Context, chunks []*vectorstore.Chunk) error
}

// Embedder turns text chunks into vectors. *embedding.Embedder implements it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config tunes an Indexer. Zero values select the defaults.
type Config struct {
	StalenessWindow time.Duration
	RunTimeout      time.Duration // negative disables the run timeout
}

// Indexer orchestrates the incremental sync pipeline.
type Indexer struct {
	source   CourseSource
	records  RecordStore
	chunks   ChunkStore
	embedder Embedder
	splitter *chunker.Splitter
	logger   *slog.Logger

	window     time.Duration
	runTimeout time.Duration

	running atomic.Bool
	nowFn   func() time.Time
}

// New creates an indexer wired to the given collaborators.
func New(source CourseSource, records RecordStore, chunks ChunkStore, embedder Embedder, splitter *chunker.Splitter, logger *slog.Logger, cfg Config) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if splitter == nil {
		splitter = chunker.New()
	}
	window := cfg.StalenessWindow
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	runTimeout := cfg.RunTimeout
	if runTimeout == 0 {
		runTimeout = DefaultRunTimeout
	}
	return &Indexer{
		source:     source,
		records:    records,
		chunks:     chunks,
		embedder:   embedder,
		splitter:   splitter,
		logger:     logger,
		window:     window,
		runTimeout: runTimeout,
		nowFn:      time.Now,
	}
}

// Run executes one indexing pass. Only one run may be active at a time; a
// concurrent trigger gets ErrRunActive and nothing else happens. Per-item
// failures are absorbed into the report so a single inaccessible resource
// never aborts the catalog sync.
func (ix *Indexer) Run(ctx context.Context, force bool) (*RunReport, error) {
	if !ix.running.CompareAndSwap(false, true) {
		return nil, ErrRunActive
	}
	defer ix.running.Store(false)

	if ix.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.runTimeout)
		defer cancel()
	}

	now := ix.nowFn()
	report := &RunReport{StartedAt: now}
	defer func() {
		report.Duration = ix.nowFn().Sub(now)
	}()

	statsBefore, err := ix.records.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	report.StatsBefore = statsBefore

	// Aggregate freshness gate: if anything is cached and the newest row is
	// inside the window, skip without contacting the upstream at all.
	if !force && statsBefore.Courses > 0 && statsBefore.LastIndexed != nil {
		if age := now.Sub(*statsBefore.LastIndexed); age < ix.window {
			report.Skipped = true
			report.SkipReason = fmt.Sprintf("index is fresh (last indexed %s ago, window %s)",
				age.Round(time.Minute), ix.window)
			report.StatsAfter = statsBefore
			ix.logger.Info("Indexing skipped", "reason", report.SkipReason)
			return report, nil
		}
	}

	courses, err := ix.source.ListActiveCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active courses: %w", err)
	}
	report.CoursesTotal = len(courses)

	// Per-course freshness filter: finer grained than the aggregate gate.
	// A globally stale cache does not mean every course needs updating.
	var updateSet []canvas.Course
	for _, course := range courses {
		if !force {
			fresh, err := ix.records.CourseFresh(ctx, course.ID, ix.window, now)
			if err != nil {
				return nil, fmt.Errorf("freshness check for course %d: %w", course.ID, err)
			}
			if fresh {
				report.CoursesFresh++
				report.record(ItemResult{
					CourseID: course.ID, CourseName: course.Name,
					Kind: "course", Status: StatusSkipped, Reason: "fresh",
				})
				continue
			}
		}
		updateSet = append(updateSet, course)
	}
	report.CoursesUpdated = len(updateSet)

	ix.logger.Info("Starting indexing",
		"courses", len(courses),
		"stale", len(updateSet),
		"force", force,
	)

	if len(updateSet) > 0 {
		// Invalidate before re-fetching so stale chunks never coexist with
		// fresh source text.
		ids := make([]int64, len(updateSet))
		for i, course := range updateSet {
			ids[i] = course.ID
		}
		if err := ix.chunks.DeleteByCourses(ctx, ids); err != nil {
			return nil, fmt.Errorf("invalidate chunks: %w", err)
		}
	}

	prog := &progress{}
	prog.addTotal(len(updateSet))

	// Sequential by design: no concurrent writers against the local store,
	// no burst against the upstream API.
	for _, course := range updateSet {
		ix.syncCourse(ctx, course, now, report, prog)
	}

	statsAfter, err := ix.records.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache stats after run: %w", err)
	}
	report.StatsAfter = statsAfter

	ix.logger.Info("Indexing complete",
		"updated", report.CoursesUpdated,
		"fresh", report.CoursesFresh,
		"failed", len(report.Failed()),
		"chunks", report.TotalChunks,
	)

	return report, nil
}

// syncCourse upserts one course and its content. Failures are recorded per
// content type and never abort the remaining work: a broken files tab must
// not cost us the syllabus, and a broken course must not cost us the rest
// of the catalog.
func (ix *Indexer) syncCourse(ctx context.Context, course canvas.Course, now time.Time, report *RunReport, prog *progress) {
	raw, err := json.Marshal(course)
	if err != nil {
		raw = []byte("{}")
	}

	err = ix.records.UpsertCourse(ctx, storage.CourseRecord{
		ID:            course.ID,
		Name:          course.Name,
		CourseCode:    course.CourseCode,
		WorkflowState: course.WorkflowState,
		RawJSON:       raw,
	}, now)
	if err != nil {
		ix.fail(report, course, "course", err)
		prog.increment()
		return
	}
	report.record(ItemResult{CourseID: course.ID, CourseName: course.Name, Kind: "course", Status: StatusSuccess})
	prog.increment()
	ix.logger.Info("Indexing course", "course", course.Name, "progress", prog.bar())

	ix.syncSyllabus(ctx, course, now, report)
	ix.syncAssignments(ctx, course, now, report, prog)
	ix.syncFiles(ctx, course, now, report, prog)
}

func (ix *Indexer) syncSyllabus(ctx context.Context, course canvas.Course, now time.Time, report *RunReport) {
	body, err := ix.source.GetSyllabus(ctx, course.ID)
	if err != nil {
		ix.fail(report, course, "syllabus", err)
		return
	}
	if body == "" {
		report.record(ItemResult{CourseID: course.ID, CourseName: course.Name, Kind: "syllabus", Status: StatusSkipped, Reason: "no syllabus"})
		return
	}

	if err := ix.records.UpsertSyllabus(ctx, course.ID, body, now); err != nil {
		ix.fail(report, course, "syllabus", err)
		return
	}

	chunks, err := ix.embedAndStore(ctx, course.ID, course.ID, vectorstore.SourceSyllabus,
		ix.splitter.Split(chunker.StripHTML(body)))
	if err != nil {
		ix.fail(report, course, "syllabus", err)
		return
	}
	report.record(ItemResult{CourseID: course.ID, CourseName: course.Name, Kind: "syllabus", Status: StatusSuccess, Chunks: chunks})
}

func (ix *Indexer) syncAssignments(ctx context.Context, course canvas.Course, now time.Time, report *RunReport, prog *progress) {
	assignments, err := ix.source.ListAssignments(ctx, course.ID)
	if err != nil {
		ix.fail(report, course, "assignments", err)
		return
	}
	prog.addTotal(len(assignments))

	totalChunks := 0
	var firstErr error
	for _, a := range assignments {
		raw, err := json.Marshal(a)
		if err != nil {
			raw = []byte("{}")
		}
		err = ix.records.UpsertAssignment(ctx, storage.AssignmentRecord{
			CourseID:    course.ID,
			ID:          a.ID,
			Name:        a.Name,
			DueAt:       a.DueAt,
			Description: a.Description,
			RawJSON:     raw,
		}, now)
		if err == nil {
			var chunks int
			chunks, err = ix.embedAndStore(ctx, course.ID, a.ID, vectorstore.SourceAssignment,
				ix.splitter.Split(chunker.StripHTML(a.Description)))
			totalChunks += chunks
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("assignment %d: %w", a.ID, err)
		}
		prog.increment()
	}

	if firstErr != nil {
		ix.fail(report, course, "assignments", firstErr)
		return
	}
	report.record(ItemResult{CourseID: course.ID, CourseName: course.Name, Kind: "assignments", Status: StatusSuccess, Chunks: totalChunks})
	ix.logger.Debug("Indexed assignments", "course", course.Name, "count", len(assignments), "progress", prog.bar())
}

func (ix *Indexer) syncFiles(ctx context.Context, course canvas.Course, now time.Time, report *RunReport, prog *progress) {
	files, err := ix.source.ListFiles(ctx, course.ID)
	if err != nil {
		ix.fail(report, course, "files", err)
		return
	}
	prog.addTotal(len(files))

	totalChunks := 0
	var firstErr error
	for _, f := range files {
		raw, err := json.Marshal(f)
		if err != nil {
			raw = []byte("{}")
		}
		err = ix.records.UpsertFile(ctx, storage.FileRecord{
			CourseID:    course.ID,
			ID:          f.ID,
			DisplayName: f.DisplayName,
			ContentType: f.ContentType,
			URL:         f.URL,
			RawJSON:     raw,
		}, now)
		if err == nil {
			var chunks int
			chunks, err = ix.indexFileText(ctx, course.ID, f)
			totalChunks += chunks
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("file %d (%s): %w", f.ID, f.DisplayName, err)
		}
		prog.increment()
	}

	if firstErr != nil {
		ix.fail(report, course, "files", firstErr)
		return
	}
	report.record(ItemResult{CourseID: course.ID, CourseName: course.Name, Kind: "files", Status: StatusSuccess, Chunks: totalChunks})
	ix.logger.Debug("Indexed files", "course", course.Name, "count", len(files), "progress", prog.bar())
}

// indexFileText downloads and embeds a file's text. Markdown files get the
// header-aware split; everything else gets plain windows.
func (ix *Indexer) indexFileText(ctx context.Context, courseID int64, f canvas.File) (int, error) {
	text, err := ix.source.FetchFileText(ctx, f)
	if err != nil {
		return 0, err
	}
	if text == "" {
		return 0, nil
	}

	var pieces []string
	if f.IsMarkdown() {
		pieces, err = ix.splitter.SplitMarkdown([]byte(text))
		if err != nil {
			return 0, err
		}
	} else {
		pieces = ix.splitter.Split(text)
	}

	return ix.embedAndStore(ctx, courseID, f.ID, vectorstore.SourceFile, pieces)
}

// embedAndStore turns text windows into chunk points. Empty input is skipped
// silently: no chunk, no embedding call.
func (ix *Indexer) embedAndStore(ctx context.Context, courseID, sourceID int64, sourceType vectorstore.SourceType, pieces []string) (int, error) {
	if len(pieces) == 0 {
		return 0, nil
	}

	vectors, err := ix.embedder.Embed(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("embed %s %d: %w", sourceType, sourceID, err)
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("embed %s %d: got %d vectors for %d chunks", sourceType, sourceID, len(vectors), len(pieces))
	}

	chunks := make([]*vectorstore.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &vectorstore.Chunk{
			ID:         uuid.New().String(),
			CourseID:   courseID,
			SourceID:   sourceID,
			SourceType: sourceType,
			ChunkIndex: i,
			Content:    piece,
			Embedding:  vectors[i],
		}
	}

	if err := ix.chunks.UpsertChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks for %s %d: %w", sourceType, sourceID, err)
	}
	return len(chunks), nil
}

func (ix *Indexer) fail(report *RunReport, course canvas.Course, kind string, err error) {
	ix.logger.Warn("Indexing item failed", "course", course.Name, "kind", kind, "error", err)
	report.record(ItemResult{
		CourseID:   course.ID,
		CourseName: course.Name,
		Kind:       kind,
		Status:     StatusFailed,
		Reason:     err.Error(),
	})
}
