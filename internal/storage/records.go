package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CourseRecord is a cached course row.
type CourseRecord struct {
	ID            int64
	Name          string
	CourseCode    string
	WorkflowState string
	RawJSON       []byte
}

// AssignmentRecord is a cached assignment row.
type AssignmentRecord struct {
	CourseID    int64
	ID          int64
	Name        string
	DueAt       *time.Time
	Description string
	RawJSON     []byte
}

// FileRecord is a cached file row.
type FileRecord struct {
	CourseID    int64
	ID          int64
	DisplayName string
	ContentType string
	URL         string
	RawJSON     []byte
}

// Stats summarizes the cache contents.
type Stats struct {
	Courses     int
	Assignments int
	Files       int
	Syllabi     int
	LastIndexed *time.Time // most recent successful upsert across all tables
}

// UpsertCourse inserts or updates a course row, refreshing last_indexed.
func (s *Store) UpsertCourse(ctx context.Context, rec CourseRecord, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courses (id, name, course_code, workflow_state, raw_json, last_indexed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  name = excluded.name,
		  course_code = excluded.course_code,
		  workflow_state = excluded.workflow_state,
		  raw_json = excluded.raw_json,
		  last_indexed = excluded.last_indexed`,
		rec.ID, rec.Name, rec.CourseCode, rec.WorkflowState, string(rec.RawJSON), now.Unix())
	if err != nil {
		return fmt.Errorf("upsert course %d: %w", rec.ID, err)
	}
	return nil
}

// UpsertAssignment inserts or updates an assignment row.
func (s *Store) UpsertAssignment(ctx context.Context, rec AssignmentRecord, now time.Time) error {
	var dueAt any
	if rec.DueAt != nil {
		dueAt = rec.DueAt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (course_id, id, name, due_at, description, raw_json, last_indexed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(course_id, id) DO UPDATE SET
		  name = excluded.name,
		  due_at = excluded.due_at,
		  description = excluded.description,
		  raw_json = excluded.raw_json,
		  last_indexed = excluded.last_indexed`,
		rec.CourseID, rec.ID, rec.Name, dueAt, rec.Description, string(rec.RawJSON), now.Unix())
	if err != nil {
		return fmt.Errorf("upsert assignment %d/%d: %w", rec.CourseID, rec.ID, err)
	}
	return nil
}

// UpsertFile inserts or updates a file row.
func (s *Store) UpsertFile(ctx context.Context, rec FileRecord, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (course_id, id, display_name, content_type, url, raw_json, last_indexed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(course_id, id) DO UPDATE SET
		  display_name = excluded.display_name,
		  content_type = excluded.content_type,
		  url = excluded.url,
		  raw_json = excluded.raw_json,
		  last_indexed = excluded.last_indexed`,
		rec.CourseID, rec.ID, rec.DisplayName, rec.ContentType, rec.URL, string(rec.RawJSON), now.Unix())
	if err != nil {
		return fmt.Errorf("upsert file %d/%d: %w", rec.CourseID, rec.ID, err)
	}
	return nil
}

// UpsertSyllabus inserts or updates a course's syllabus body.
func (s *Store) UpsertSyllabus(ctx context.Context, courseID int64, body string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO syllabi (course_id, body, last_indexed)
		VALUES (?, ?, ?)
		ON CONFLICT(course_id) DO UPDATE SET
		  body = excluded.body,
		  last_indexed = excluded.last_indexed`,
		courseID, body, now.Unix())
	if err != nil {
		return fmt.Errorf("upsert syllabus %d: %w", courseID, err)
	}
	return nil
}

// Stats computes aggregate row counts and the most recent last_indexed
// across all tables.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM courses", &stats.Courses},
		{"SELECT COUNT(*) FROM assignments", &stats.Assignments},
		{"SELECT COUNT(*) FROM files", &stats.Files},
		{"SELECT COUNT(*) FROM syllabi", &stats.Syllabi},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("cache stats: %w", err)
		}
	}

	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(t) FROM (
		  SELECT MAX(last_indexed) AS t FROM courses
		  UNION ALL SELECT MAX(last_indexed) FROM assignments
		  UNION ALL SELECT MAX(last_indexed) FROM files
		  UNION ALL SELECT MAX(last_indexed) FROM syllabi
		)`).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	if latest.Valid {
		t := time.Unix(latest.Int64, 0)
		stats.LastIndexed = &t
	}

	return stats, nil
}

// CourseFresh reports whether a course's cached row was indexed within the
// staleness window. A course with no row is never fresh.
func (s *Store) CourseFresh(ctx context.Context, courseID int64, window time.Duration, now time.Time) (bool, error) {
	var lastIndexed int64
	err := s.db.QueryRowContext(ctx,
		"SELECT last_indexed FROM courses WHERE id = ?", courseID).Scan(&lastIndexed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("course freshness %d: %w", courseID, err)
	}
	return now.Sub(time.Unix(lastIndexed, 0)) < window, nil
}

// CourseName returns the cached name for a course, or empty string when the
// course has never been indexed.
func (s *Store) CourseName(ctx context.Context, courseID int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM courses WHERE id = ?", courseID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("course name %d: %w", courseID, err)
	}
	return name, nil
}

// SyllabusBody returns the cached syllabus for a course, or empty string.
func (s *Store) SyllabusBody(ctx context.Context, courseID int64) (string, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM syllabi WHERE course_id = ?", courseID).Scan(&body)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("syllabus %d: %w", courseID, err)
	}
	return body, nil
}
