package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_Idempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Re-opening an existing database must not fail or re-run migrations.
	store, err = Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestUpsertCourse_OneRowPerID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	rec := CourseRecord{ID: 42, Name: "Intro", CourseCode: "CS101", WorkflowState: "available", RawJSON: []byte(`{"id":42}`)}
	require.NoError(t, store.UpsertCourse(ctx, rec, now))

	rec.Name = "Intro to CS"
	require.NoError(t, store.UpsertCourse(ctx, rec, now.Add(time.Hour)))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Courses, "upsert must not create duplicate rows")

	var name string
	require.NoError(t, store.db.QueryRow("SELECT name FROM courses WHERE id = 42").Scan(&name))
	assert.Equal(t, "Intro to CS", name)
}

func TestLastIndexed_TracksMostRecentUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	early := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	late := time.Now().Truncate(time.Second)

	require.NoError(t, store.UpsertCourse(ctx, CourseRecord{ID: 1, Name: "A", CourseCode: "A1", WorkflowState: "available", RawJSON: []byte("{}")}, early))
	require.NoError(t, store.UpsertAssignment(ctx, AssignmentRecord{CourseID: 1, ID: 10, Name: "HW1", RawJSON: []byte("{}")}, late))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats.LastIndexed)
	assert.Equal(t, late.Unix(), stats.LastIndexed.Unix())
}

func TestCourseFresh(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	window := 6 * time.Hour

	// No row: never fresh.
	fresh, err := store.CourseFresh(ctx, 99, window, now)
	require.NoError(t, err)
	assert.False(t, fresh)

	// Indexed one hour ago: fresh.
	require.NoError(t, store.UpsertCourse(ctx, CourseRecord{ID: 99, Name: "A", CourseCode: "A1", WorkflowState: "available", RawJSON: []byte("{}")}, now.Add(-time.Hour)))
	fresh, err = store.CourseFresh(ctx, 99, window, now)
	require.NoError(t, err)
	assert.True(t, fresh)

	// Indexed seven hours ago: stale.
	require.NoError(t, store.UpsertCourse(ctx, CourseRecord{ID: 99, Name: "A", CourseCode: "A1", WorkflowState: "available", RawJSON: []byte("{}")}, now.Add(-7*time.Hour)))
	fresh, err = store.CourseFresh(ctx, 99, window, now)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestSyllabusRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	body, err := store.SyllabusBody(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, body)

	require.NoError(t, store.UpsertSyllabus(ctx, 7, "<p>Welcome</p>", now))
	require.NoError(t, store.UpsertSyllabus(ctx, 7, "<p>Updated</p>", now.Add(time.Minute)))

	body, err = store.SyllabusBody(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "<p>Updated</p>", body)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Syllabi)
}

func TestStats_CountsAllTables(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.UpsertCourse(ctx, CourseRecord{ID: 1, Name: "A", CourseCode: "A1", WorkflowState: "available", RawJSON: []byte("{}")}, now))
	require.NoError(t, store.UpsertAssignment(ctx, AssignmentRecord{CourseID: 1, ID: 1, Name: "HW", RawJSON: []byte("{}")}, now))
	require.NoError(t, store.UpsertAssignment(ctx, AssignmentRecord{CourseID: 1, ID: 2, Name: "HW2", RawJSON: []byte("{}")}, now))
	require.NoError(t, store.UpsertFile(ctx, FileRecord{CourseID: 1, ID: 5, DisplayName: "notes.pdf", RawJSON: []byte("{}")}, now))
	require.NoError(t, store.UpsertSyllabus(ctx, 1, "body", now))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Courses)
	assert.Equal(t, 2, stats.Assignments)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Syllabi)
}
