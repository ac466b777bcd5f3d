package classifier

import (
	"strings"
	"time"

	"github.com/lmsbridge/canvas-mcp/internal/canvas"
)

// Confidence tiers for a "current" verdict, ordered by evidence strength.
const (
	ConfidenceExactDates  = 50 // explicit course start/end bracket now
	ConfidenceTermDates   = 40 // term (or override) window brackets now
	ConfidenceNamePattern = 35 // name/code names the current term
	ConfidenceNoMetadata  = 15 // no dates at all, workflow available
)

// upcomingWindow is the strict look-ahead/look-back window for the upcoming
// and recently-completed predicates.
const upcomingWindow = 28 * 24 * time.Hour

// Verdict is the result of classifying a single course.
type Verdict struct {
	Current    bool
	Confidence int    // 0-100, zero unless Current
	Reason     string // which rule decided
}

func notCurrent(reason string) Verdict {
	return Verdict{Current: false, Confidence: 0, Reason: reason}
}

// Classify decides whether a course is currently active at the reference
// instant. Rules are checked in priority order and the first match wins;
// in particular the wrong-term name check fires before the matching-term
// check, so an exclusion can never be rescued by a later inclusion.
func Classify(course canvas.Course, now time.Time) Verdict {
	// 1. The LMS says it's over. Authoritative, regardless of dates.
	if course.Concluded {
		return notCurrent("concluded by LMS")
	}

	// 2. Workflow state rules it out.
	if course.WorkflowState == "completed" || course.WorkflowState == "unpublished" {
		return notCurrent("workflow state " + course.WorkflowState)
	}

	text := strings.ToLower(course.Name + " " + course.CourseCode)
	current := CurrentTerm(now)

	// 3. Name or code unambiguously names a different term.
	for _, term := range otherTerms(current) {
		for _, form := range term.SurfaceForms() {
			if strings.Contains(text, form) {
				return notCurrent("names different term " + term.String())
			}
		}
	}

	// 4. Ended more than one calendar month ago.
	if course.EndAt != nil && course.EndAt.Before(now.AddDate(0, -1, 0)) {
		return notCurrent("ended over a month ago")
	}

	// 5. Explicit dates bracket now: strongest evidence.
	if course.StartAt != nil && course.EndAt != nil {
		if within(now, *course.StartAt, *course.EndAt) {
			return Verdict{Current: true, Confidence: ConfidenceExactDates, Reason: "explicit dates"}
		}
	}

	// 6. Term window (per-enrollment-type override wins over term defaults).
	if start, end := termWindow(course); start != nil && end != nil {
		if within(now, *start, *end) {
			return Verdict{Current: true, Confidence: ConfidenceTermDates, Reason: "term dates"}
		}
	}

	// 7. Name or code names the current term.
	for _, form := range current.SurfaceForms() {
		if strings.Contains(text, form) {
			return Verdict{Current: true, Confidence: ConfidenceNamePattern, Reason: "name matches current term"}
		}
	}

	// 8. No date metadata at all but the course is published and available.
	if !hasDateMetadata(course) && course.WorkflowState == "available" {
		return Verdict{Current: true, Confidence: ConfidenceNoMetadata, Reason: "available with no dates"}
	}

	// 9. Default deny.
	return notCurrent("no evidence of currency")
}

// IsUpcoming reports whether the course starts within the next 28 days,
// using explicit dates when present and term dates otherwise.
func IsUpcoming(course canvas.Course, now time.Time) bool {
	start := course.StartAt
	if start == nil {
		start, _ = termWindow(course)
	}
	if start == nil {
		return false
	}
	return start.After(now) && start.Sub(now) <= upcomingWindow
}

// IsRecentlyCompleted reports whether the course ended within the last 28
// days, using explicit dates when present and term dates otherwise.
func IsRecentlyCompleted(course canvas.Course, now time.Time) bool {
	end := course.EndAt
	if end == nil {
		_, end = termWindow(course)
	}
	if end == nil {
		return false
	}
	return end.Before(now) && now.Sub(*end) <= upcomingWindow
}

// Buckets partitions a course list by currency. A course lands in at most
// one of Current/Upcoming/RecentlyCompleted but always in AllActive when its
// enrollment state is active; the sets are non-exclusive by design.
type Buckets struct {
	Current           []Classified
	Upcoming          []canvas.Course
	RecentlyCompleted []canvas.Course
	AllActive         []canvas.Course
}

// Classified pairs a course with its currency verdict.
type Classified struct {
	Course  canvas.Course
	Verdict Verdict
}

// Categorize applies the currency predicates to each course once.
func Categorize(courses []canvas.Course, now time.Time) Buckets {
	var b Buckets
	for _, course := range courses {
		verdict := Classify(course, now)
		switch {
		case verdict.Current:
			b.Current = append(b.Current, Classified{Course: course, Verdict: verdict})
		case IsUpcoming(course, now):
			b.Upcoming = append(b.Upcoming, course)
		case IsRecentlyCompleted(course, now):
			b.RecentlyCompleted = append(b.RecentlyCompleted, course)
		}
		if course.EnrollmentState() == "active" {
			b.AllActive = append(b.AllActive, course)
		}
	}
	return b
}

// termWindow resolves the effective term start/end for a course, applying
// the enrollment-type override ("StudentEnrollment" etc.) when one exists.
func termWindow(course canvas.Course) (*time.Time, *time.Time) {
	if course.Term == nil {
		return nil, nil
	}
	start, end := course.Term.StartAt, course.Term.EndAt

	if key := overrideKey(course.EnrollmentType()); key != "" {
		if override, ok := course.Term.Overrides[key]; ok {
			if override.StartAt != nil {
				start = override.StartAt
			}
			if override.EndAt != nil {
				end = override.EndAt
			}
		}
	}
	return start, end
}

// overrideKey maps an enrollment type ("student") to the capitalized
// override map key Canvas uses ("StudentEnrollment").
func overrideKey(enrollmentType string) string {
	if enrollmentType == "" {
		return ""
	}
	return strings.ToUpper(enrollmentType[:1]) + strings.ToLower(enrollmentType[1:]) + "Enrollment"
}

func hasDateMetadata(course canvas.Course) bool {
	if course.StartAt != nil || course.EndAt != nil {
		return true
	}
	if course.Term != nil && (course.Term.StartAt != nil || course.Term.EndAt != nil) {
		return true
	}
	return false
}

func within(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}
