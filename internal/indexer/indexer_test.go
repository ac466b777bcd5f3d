package indexer

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmsbridge/canvas-mcp/internal/canvas"
	"github.com/lmsbridge/canvas-mcp/internal/chunker"
	"github.com/lmsbridge/canvas-mcp/internal/storage"
	"github.com/lmsbridge/canvas-mcp/internal/vectorstore"
)

// fakeSource is an in-memory CourseSource with injectable failures.
type fakeSource struct {
	courses     []canvas.Course
	syllabi     map[int64]string
	assignments map[int64][]canvas.Assignment
	files       map[int64][]canvas.File
	fileText    map[int64]string

	errFiles       map[int64]error
	errAssignments map[int64]error
	errSyllabus    map[int64]error

	listCalls        int
	syllabusCalls    int
	assignmentCalls  int
	fileCalls        int
	blockListCourses chan struct{} // when set, ListActiveCourses waits on it
}

func (f *fakeSource) ListActiveCourses(ctx context.Context) ([]canvas.Course, error) {
	f.listCalls++
	if f.blockListCourses != nil {
		<-f.blockListCourses
	}
	return f.courses, nil
}

func (f *fakeSource) GetSyllabus(ctx context.Context, courseID int64) (string, error) {
	f.syllabusCalls++
	if err := f.errSyllabus[courseID]; err != nil {
		return "", err
	}
	return f.syllabi[courseID], nil
}

func (f *fakeSource) ListAssignments(ctx context.Context, courseID int64) ([]canvas.Assignment, error) {
	f.assignmentCalls++
	if err := f.errAssignments[courseID]; err != nil {
		return nil, err
	}
	return f.assignments[courseID], nil
}

func (f *fakeSource) ListFiles(ctx context.Context, courseID int64) ([]canvas.File, error) {
	f.fileCalls++
	if err := f.errFiles[courseID]; err != nil {
		return nil, err
	}
	return f.files[courseID], nil
}

func (f *fakeSource) FetchFileText(ctx context.Context, file canvas.File) (string, error) {
	return f.fileText[file.ID], nil
}

// fakeRecords is an in-memory RecordStore. Freshness is scripted per course
// so tests can exercise the per-course filter independently of the
// aggregate gate.
type fakeRecords struct {
	stats storage.Stats
	fresh map[int64]bool

	courses     []storage.CourseRecord
	assignments []storage.AssignmentRecord
	files       []storage.FileRecord
	syllabi     map[int64]string
}

func (f *fakeRecords) Stats(ctx context.Context) (*storage.Stats, error) {
	s := f.stats
	return &s, nil
}

func (f *fakeRecords) CourseFresh(ctx context.Context, courseID int64, window time.Duration, now time.Time) (bool, error) {
	return f.fresh[courseID], nil
}

func (f *fakeRecords) UpsertCourse(ctx context.Context, rec storage.CourseRecord, now time.Time) error {
	f.courses = append(f.courses, rec)
	return nil
}

func (f *fakeRecords) UpsertAssignment(ctx context.Context, rec storage.AssignmentRecord, now time.Time) error {
	f.assignments = append(f.assignments, rec)
	return nil
}

func (f *fakeRecords) UpsertFile(ctx context.Context, rec storage.FileRecord, now time.Time) error {
	f.files = append(f.files, rec)
	return nil
}

func (f *fakeRecords) UpsertSyllabus(ctx context.Context, courseID int64, body string, now time.Time) error {
	if f.syllabi == nil {
		f.syllabi = make(map[int64]string)
	}
	f.syllabi[courseID] = body
	return nil
}

// fakeChunks is an in-memory ChunkStore tracking chunk IDs per course.
type fakeChunks struct {
	byCourse map[int64][]*vectorstore.Chunk
	deletes  [][]int64
}

func (f *fakeChunks) DeleteByCourses(ctx context.Context, courseIDs []int64) error {
	f.deletes = append(f.deletes, courseIDs)
	for _, id := range courseIDs {
		delete(f.byCourse, id)
	}
	return nil
}

func (f *fakeChunks) UpsertChunks(ctx context.Context, chunks []*vectorstore.Chunk) error {
	if f.byCourse == nil {
		f.byCourse = make(map[int64][]*vectorstore.Chunk)
	}
	for _, c := range chunks {
		f.byCourse[c.CourseID] = append(f.byCourse[c.CourseID], c)
	}
	return nil
}

func (f *fakeChunks) ids(courseID int64) map[string]bool {
	ids := make(map[string]bool)
	for _, c := range f.byCourse[courseID] {
		ids[c.ID] = true
	}
	return ids
}

// fakeEmbedder counts calls and returns unit vectors.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1}
	}
	return vectors, nil
}

func testCourse(id int64, name string) canvas.Course {
	return canvas.Course{
		ID:            id,
		Name:          name,
		CourseCode:    name,
		WorkflowState: "available",
	}
}

func newTestIndexer(source *fakeSource, records *fakeRecords, chunks *fakeChunks, emb *fakeEmbedder) *Indexer {
	return New(source, records, chunks, emb,
		chunker.New(chunker.WithChunkSize(64), chunker.WithOverlap(16)),
		slog.New(slog.DiscardHandler),
		Config{},
	)
}

func hourAgo(h int) *time.Time {
	t := time.Now().Add(-time.Duration(h) * time.Hour)
	return &t
}

func TestRun_AggregateFreshnessSkip(t *testing.T) {
	source := &fakeSource{courses: []canvas.Course{testCourse(1, "A")}}
	records := &fakeRecords{stats: storage.Stats{Courses: 3, LastIndexed: hourAgo(1)}}
	chunks := &fakeChunks{}
	emb := &fakeEmbedder{}

	ix := newTestIndexer(source, records, chunks, emb)
	report, err := ix.Run(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.NotEmpty(t, report.SkipReason)
	assert.Zero(t, source.listCalls, "fresh index must not contact the upstream at all")
	assert.Zero(t, source.assignmentCalls)
	assert.Zero(t, source.fileCalls)
	assert.Empty(t, chunks.deletes)
}

func TestRun_ForceBypassesFreshnessGate(t *testing.T) {
	source := &fakeSource{courses: []canvas.Course{testCourse(1, "A")}}
	records := &fakeRecords{
		stats: storage.Stats{Courses: 3, LastIndexed: hourAgo(1)},
		fresh: map[int64]bool{1: true}, // force must bypass this too
	}
	chunks := &fakeChunks{}
	emb := &fakeEmbedder{}

	ix := newTestIndexer(source, records, chunks, emb)
	report, err := ix.Run(context.Background(), true)
	require.NoError(t, err)

	assert.False(t, report.Skipped)
	assert.Equal(t, 1, source.listCalls)
	assert.Equal(t, 1, report.CoursesUpdated)
	assert.Zero(t, report.CoursesFresh)
}

func TestRun_PerCourseFilterAndInvalidationBoundary(t *testing.T) {
	courseA := testCourse(1, "Fresh Course")
	courseB := testCourse(2, "Stale Course")

	source := &fakeSource{
		courses: []canvas.Course{courseA, courseB},
		syllabi: map[int64]string{2: "<p>syllabus for B</p>"},
	}
	records := &fakeRecords{
		stats: storage.Stats{Courses: 2, LastIndexed: hourAgo(7)}, // aggregate stale
		fresh: map[int64]bool{1: true, 2: false},
	}
	chunks := &fakeChunks{}
	emb := &fakeEmbedder{}

	// Pre-existing chunks for both courses.
	require.NoError(t, chunks.UpsertChunks(context.Background(), []*vectorstore.Chunk{
		{ID: "a-old", CourseID: 1, SourceType: vectorstore.SourceSyllabus},
		{ID: "b-old", CourseID: 2, SourceType: vectorstore.SourceSyllabus},
	}))

	ix := newTestIndexer(source, records, chunks, emb)
	report, err := ix.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.CoursesFresh)
	assert.Equal(t, 1, report.CoursesUpdated)

	// Only the stale course was invalidated.
	require.Len(t, chunks.deletes, 1)
	assert.Equal(t, []int64{2}, chunks.deletes[0])

	// Course A's chunks are untouched; course B's were fully replaced.
	assert.True(t, chunks.ids(1)["a-old"], "fresh course chunks must survive")
	assert.False(t, chunks.ids(2)["b-old"], "stale course chunks must be gone")
	assert.NotEmpty(t, chunks.ids(2), "stale course should have fresh chunks")
}

func TestRun_ErrorIsolation(t *testing.T) {
	courseX := testCourse(1, "X")
	courseY := testCourse(2, "Y")

	source := &fakeSource{
		courses: []canvas.Course{courseX, courseY},
		syllabi: map[int64]string{1: "<p>x syllabus</p>", 2: "<p>y syllabus</p>"},
		assignments: map[int64][]canvas.Assignment{
			1: {{ID: 11, Name: "HW1", Description: "<p>do the reading</p>"}},
			2: {{ID: 21, Name: "HW1", Description: "<p>write an essay</p>"}},
		},
		errFiles: map[int64]error{1: errors.New("files tab exploded")},
	}
	records := &fakeRecords{stats: storage.Stats{}}
	chunks := &fakeChunks{}
	emb := &fakeEmbedder{}

	ix := newTestIndexer(source, records, chunks, emb)
	report, err := ix.Run(context.Background(), false)
	require.NoError(t, err, "per-item failures must not fail the run")

	// Course X: files failed, but syllabus and assignments were processed.
	assert.Equal(t, 2, source.syllabusCalls)
	assert.Equal(t, 2, source.assignmentCalls)
	assert.Equal(t, 2, source.fileCalls, "course Y files still fetched after X failed")
	assert.Len(t, records.assignments, 2)

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(1), failed[0].CourseID)
	assert.Equal(t, "files", failed[0].Kind)
	assert.Contains(t, failed[0].Reason, "files tab exploded")

	// Course Y fully succeeded.
	var yKinds []string
	for _, item := range report.Items {
		if item.CourseID == 2 && item.Status == StatusSuccess {
			yKinds = append(yKinds, item.Kind)
		}
	}
	assert.ElementsMatch(t, []string{"course", "syllabus", "assignments", "files"}, yKinds)
}

func TestRun_SecondTriggerDropped(t *testing.T) {
	block := make(chan struct{})
	source := &fakeSource{
		courses:          []canvas.Course{},
		blockListCourses: block,
	}
	records := &fakeRecords{stats: storage.Stats{}}
	ix := newTestIndexer(source, records, &fakeChunks{}, &fakeEmbedder{})

	done := make(chan error, 1)
	go func() {
		_, err := ix.Run(context.Background(), true)
		done <- err
	}()

	// Wait for the first run to be inside ListActiveCourses.
	require.Eventually(t, func() bool { return source.listCalls > 0 }, time.Second, time.Millisecond)

	_, err := ix.Run(context.Background(), true)
	assert.ErrorIs(t, err, ErrRunActive, "concurrent trigger must be dropped")

	close(block)
	require.NoError(t, <-done)

	// Lock released: a later run may start.
	_, err = ix.Run(context.Background(), true)
	assert.NoError(t, err)
}

func TestRun_EmptyTextSkipsEmbedding(t *testing.T) {
	course := testCourse(1, "Quiet Course")
	source := &fakeSource{
		courses:     []canvas.Course{course},
		syllabi:     map[int64]string{}, // no syllabus
		assignments: map[int64][]canvas.Assignment{1: {{ID: 11, Name: "HW", Description: ""}}},
		files:       map[int64][]canvas.File{1: {{ID: 5, DisplayName: "video.mp4", ContentType: "video/mp4"}}},
	}
	records := &fakeRecords{stats: storage.Stats{}}
	chunks := &fakeChunks{}
	emb := &fakeEmbedder{}

	ix := newTestIndexer(source, records, chunks, emb)
	report, err := ix.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Zero(t, emb.calls, "empty text must not trigger embedding calls")
	assert.Zero(t, report.TotalChunks)
	assert.Len(t, records.assignments, 1, "rows are still upserted")
	assert.Len(t, records.files, 1)

	// The missing syllabus is a typed skip, not a failure.
	var syllabusStatus Status
	for _, item := range report.Items {
		if item.Kind == "syllabus" {
			syllabusStatus = item.Status
		}
	}
	assert.Equal(t, StatusSkipped, syllabusStatus)
	assert.Empty(t, report.Failed())
}

func TestRun_ReportCountsChunks(t *testing.T) {
	course := testCourse(1, "Busy Course")
	source := &fakeSource{
		courses: []canvas.Course{course},
		syllabi: map[int64]string{1: "<p>" + longText(300) + "</p>"},
		assignments: map[int64][]canvas.Assignment{
			1: {{ID: 11, Name: "HW", Description: "<p>short description</p>"}},
		},
	}
	records := &fakeRecords{stats: storage.Stats{}}
	chunks := &fakeChunks{}
	emb := &fakeEmbedder{}

	ix := newTestIndexer(source, records, chunks, emb)
	report, err := ix.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Greater(t, report.TotalChunks, 1, "long syllabus should produce multiple chunks")
	assert.Len(t, chunks.byCourse[1], report.TotalChunks)
	assert.Equal(t, "<p>"+longText(300)+"</p>", records.syllabi[1], "raw HTML body cached as-is")
}

func longText(words int) string {
	out := ""
	for i := 0; i < words; i++ {
		out += "word "
	}
	return out
}
