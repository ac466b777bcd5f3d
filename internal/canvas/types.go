// Package canvas provides a paginated Canvas LMS REST client and the
// per-resource fetchers the indexing core consumes.
package canvas

import "time"

// Enrollment is a single enrollment of the token's user in a course.
type Enrollment struct {
	Type            string `json:"type"`             // student, teacher, ta, designer, observer
	EnrollmentState string `json:"enrollment_state"` // active, completed, invited, ...
}

// TermOverride is an enrollment-type-specific date range that supersedes the
// term's default start/end. Keys in Term.Overrides are capitalized enrollment
// type names like "StudentEnrollment".
type TermOverride struct {
	StartAt *time.Time `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
}

// Term is the academic term a course belongs to.
type Term struct {
	ID        int64                   `json:"id"`
	Name      string                  `json:"name"`
	StartAt   *time.Time              `json:"start_at"`
	EndAt     *time.Time              `json:"end_at"`
	Overrides map[string]TermOverride `json:"overrides,omitempty"`
}

// Course is a course as reported by the Canvas courses endpoint with the
// term include. Currency confidence is never stored here; the classifier
// computes it per call.
type Course struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	CourseCode    string       `json:"course_code"`
	WorkflowState string       `json:"workflow_state"` // available, completed, unpublished
	StartAt       *time.Time   `json:"start_at"`
	EndAt         *time.Time   `json:"end_at"`
	Concluded     bool         `json:"concluded"`
	Term          *Term        `json:"term,omitempty"`
	Enrollments   []Enrollment `json:"enrollments,omitempty"`
	SyllabusBody  string       `json:"syllabus_body,omitempty"`
}

// EnrollmentState returns the state of the first enrollment, or empty.
func (c *Course) EnrollmentState() string {
	if len(c.Enrollments) == 0 {
		return ""
	}
	return c.Enrollments[0].EnrollmentState
}

// EnrollmentType returns the type of the first enrollment, or empty.
func (c *Course) EnrollmentType() string {
	if len(c.Enrollments) == 0 {
		return ""
	}
	return c.Enrollments[0].Type
}

// Assignment is a course assignment.
type Assignment struct {
	ID             int64      `json:"id"`
	CourseID       int64      `json:"course_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"` // HTML body
	DueAt          *time.Time `json:"due_at"`
	PointsPossible float64    `json:"points_possible"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

// File is a file attached to a course.
type File struct {
	ID          int64      `json:"id"`
	DisplayName string     `json:"display_name"`
	ContentType string     `json:"content-type"`
	URL         string     `json:"url"`
	Size        int64      `json:"size"`
	UpdatedAt   *time.Time `json:"updated_at"`
}
