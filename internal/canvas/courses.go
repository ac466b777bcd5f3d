package canvas

import "context"

// ListActiveCourses returns all courses with an active enrollment for the
// token's user, including term dates and the concluded flag needed by the
// currency classifier.
func (c *Client) ListActiveCourses(ctx context.Context) ([]Course, error) {
	return fetchAll[Course](ctx, c, "/api/v1/courses", Params{
		"enrollment_state": "active",
		"include":          []string{"term", "concluded"},
	})
}

// ListAllCourses returns every course the user can see regardless of
// enrollment state. Used by list_courses so recently completed courses are
// still classifiable.
func (c *Client) ListAllCourses(ctx context.Context) ([]Course, error) {
	return fetchAll[Course](ctx, c, "/api/v1/courses", Params{
		"include": []string{"term", "concluded"},
		"state":   []string{"available", "completed"},
	})
}

// GetSyllabus fetches a course's syllabus body. Returns empty string when the
// course has no syllabus. A disabled syllabus tab surfaces as
// ErrResourceDisabled from the transport layer.
func (c *Client) GetSyllabus(ctx context.Context, courseID int64) (string, error) {
	var course Course
	err := c.getObject(ctx, courseURL(courseID), Params{
		"include": []string{"syllabus_body"},
	}, &course)
	if err != nil {
		return "", err
	}
	return course.SyllabusBody, nil
}
