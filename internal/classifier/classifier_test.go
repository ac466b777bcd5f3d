package classifier

import (
	"testing"
	"time"

	"github.com/lmsbridge/canvas-mcp/internal/canvas"
)

// now is mid-fall 2025 for most tests.
var testNow = date(2025, time.October, 15)

func ptr(t time.Time) *time.Time { return &t }

func activeCourse(name string) canvas.Course {
	return canvas.Course{
		ID:            101,
		Name:          name,
		CourseCode:    "CS101",
		WorkflowState: "available",
		Enrollments:   []canvas.Enrollment{{Type: "student", EnrollmentState: "active"}},
	}
}

func TestClassify_Idempotent(t *testing.T) {
	course := activeCourse("Intro to CS")
	course.StartAt = ptr(date(2025, time.September, 1))
	course.EndAt = ptr(date(2025, time.December, 15))

	first := Classify(course, testNow)
	second := Classify(course, testNow)
	if first != second {
		t.Errorf("verdicts differ: %+v vs %+v", first, second)
	}
}

func TestClassify_ConcludedWinsOverDates(t *testing.T) {
	course := activeCourse("Intro to CS")
	course.Concluded = true
	course.StartAt = ptr(date(2025, time.September, 1))
	course.EndAt = ptr(date(2025, time.December, 15))

	verdict := Classify(course, testNow)
	if verdict.Current {
		t.Errorf("concluded course classified current: %+v", verdict)
	}
}

func TestClassify_WorkflowStateRulesOut(t *testing.T) {
	for _, state := range []string{"completed", "unpublished"} {
		course := activeCourse("Intro to CS")
		course.WorkflowState = state
		course.StartAt = ptr(date(2025, time.September, 1))
		course.EndAt = ptr(date(2025, time.December, 15))

		if verdict := Classify(course, testNow); verdict.Current {
			t.Errorf("workflow %s classified current: %+v", state, verdict)
		}
	}
}

func TestClassify_DenylistPrecedesAllowlist(t *testing.T) {
	// "Fa25Sp" contains both the current fall-25 allow pattern ("fa25") and
	// the spring-25 deny pattern ("25sp"). Exclusion must win.
	course := activeCourse("CS101 Fa25Sp")
	course.StartAt = ptr(date(2025, time.September, 1))
	course.EndAt = ptr(date(2025, time.December, 15))

	verdict := Classify(course, testNow)
	if verdict.Current {
		t.Errorf("deny pattern did not win: %+v", verdict)
	}
}

func TestClassify_WrongTermNameExcludes(t *testing.T) {
	course := activeCourse("Data Structures sp25")
	if verdict := Classify(course, testNow); verdict.Current {
		t.Errorf("spring course classified current in fall: %+v", verdict)
	}
}

func TestClassify_ConfidenceOrdering(t *testing.T) {
	// Four courses identical except for the evidence tier that makes each
	// current. Scores must come out 50 > 40 > 35 > 15.
	exact := activeCourse("Exact Dates")
	exact.StartAt = ptr(date(2025, time.September, 1))
	exact.EndAt = ptr(date(2025, time.December, 15))

	term := activeCourse("Term Dates")
	term.Term = &canvas.Term{
		Name:    "Fall Term",
		StartAt: ptr(date(2025, time.September, 1)),
		EndAt:   ptr(date(2025, time.December, 15)),
	}

	named := activeCourse("Biology fa25")

	bare := activeCourse("No Metadata")

	tiers := []struct {
		name   string
		course canvas.Course
		want   int
	}{
		{"exact dates", exact, ConfidenceExactDates},
		{"term dates", term, ConfidenceTermDates},
		{"name pattern", named, ConfidenceNamePattern},
		{"no metadata", bare, ConfidenceNoMetadata},
	}

	prev := 101
	for _, tier := range tiers {
		verdict := Classify(tier.course, testNow)
		if !verdict.Current {
			t.Fatalf("%s: not classified current: %+v", tier.name, verdict)
		}
		if verdict.Confidence != tier.want {
			t.Errorf("%s: confidence = %d, want %d", tier.name, verdict.Confidence, tier.want)
		}
		if verdict.Confidence >= prev {
			t.Errorf("%s: confidence %d not strictly below previous tier %d", tier.name, verdict.Confidence, prev)
		}
		prev = verdict.Confidence
	}
}

func TestClassify_TermOverrideApplies(t *testing.T) {
	// Term default window excludes now, but the student override extends it.
	course := activeCourse("Chemistry")
	course.Term = &canvas.Term{
		Name:    "Fall Term",
		StartAt: ptr(date(2025, time.June, 1)),
		EndAt:   ptr(date(2025, time.August, 15)),
		Overrides: map[string]canvas.TermOverride{
			"StudentEnrollment": {
				StartAt: ptr(date(2025, time.September, 1)),
				EndAt:   ptr(date(2025, time.December, 15)),
			},
		},
	}

	verdict := Classify(course, testNow)
	if !verdict.Current || verdict.Confidence != ConfidenceTermDates {
		t.Errorf("override window not applied: %+v", verdict)
	}
}

func TestClassify_EndedOverAMonthAgo(t *testing.T) {
	course := activeCourse("Old Course")
	course.EndAt = ptr(date(2025, time.August, 1))

	if verdict := Classify(course, testNow); verdict.Current {
		t.Errorf("long-ended course classified current: %+v", verdict)
	}
}

func TestClassify_DefaultDeny(t *testing.T) {
	// Dates exist but bracket a different window; no name evidence.
	course := activeCourse("Mystery")
	course.StartAt = ptr(date(2026, time.February, 1))
	course.EndAt = ptr(date(2026, time.May, 15))

	if verdict := Classify(course, testNow); verdict.Current {
		t.Errorf("future course classified current: %+v", verdict)
	}
}

func TestIsUpcoming(t *testing.T) {
	soon := activeCourse("Starts Soon")
	soon.StartAt = ptr(testNow.Add(14 * 24 * time.Hour))
	if !IsUpcoming(soon, testNow) {
		t.Error("course starting in 14 days should be upcoming")
	}

	far := activeCourse("Starts Later")
	far.StartAt = ptr(testNow.Add(40 * 24 * time.Hour))
	if IsUpcoming(far, testNow) {
		t.Error("course starting in 40 days should not be upcoming")
	}

	started := activeCourse("Already Started")
	started.StartAt = ptr(testNow.Add(-1 * 24 * time.Hour))
	if IsUpcoming(started, testNow) {
		t.Error("already-started course should not be upcoming")
	}

	// Falls back to term dates when explicit dates are absent.
	termOnly := activeCourse("Term Start")
	termOnly.Term = &canvas.Term{StartAt: ptr(testNow.Add(7 * 24 * time.Hour))}
	if !IsUpcoming(termOnly, testNow) {
		t.Error("term start within window should be upcoming")
	}
}

func TestIsRecentlyCompleted(t *testing.T) {
	recent := activeCourse("Just Ended")
	recent.EndAt = ptr(testNow.Add(-10 * 24 * time.Hour))
	if !IsRecentlyCompleted(recent, testNow) {
		t.Error("course ended 10 days ago should be recently completed")
	}

	old := activeCourse("Long Ended")
	old.EndAt = ptr(testNow.Add(-60 * 24 * time.Hour))
	if IsRecentlyCompleted(old, testNow) {
		t.Error("course ended 60 days ago should not be recently completed")
	}
}

func TestCategorize_Buckets(t *testing.T) {
	current := activeCourse("Current fa25")
	current.StartAt = ptr(date(2025, time.September, 1))
	current.EndAt = ptr(date(2025, time.December, 15))

	upcoming := activeCourse("Winter Session")
	upcoming.StartAt = ptr(testNow.Add(14 * 24 * time.Hour))
	upcoming.EndAt = ptr(testNow.Add(90 * 24 * time.Hour))

	recent := activeCourse("Summer Wrap")
	recent.EndAt = ptr(testNow.Add(-5 * 24 * time.Hour))

	inactive := activeCourse("Dropped")
	inactive.Enrollments = []canvas.Enrollment{{Type: "student", EnrollmentState: "completed"}}
	inactive.StartAt = ptr(date(2026, time.February, 1))
	inactive.EndAt = ptr(date(2026, time.May, 1))

	b := Categorize([]canvas.Course{current, upcoming, recent, inactive}, testNow)

	if len(b.Current) != 1 || b.Current[0].Course.Name != current.Name {
		t.Errorf("current bucket = %+v", b.Current)
	}
	if len(b.Upcoming) != 1 || b.Upcoming[0].Name != upcoming.Name {
		t.Errorf("upcoming bucket = %+v", b.Upcoming)
	}
	if len(b.RecentlyCompleted) != 1 || b.RecentlyCompleted[0].Name != recent.Name {
		t.Errorf("recently completed bucket = %+v", b.RecentlyCompleted)
	}
	// AllActive is non-exclusive: the three active-enrollment courses appear
	// there too, the dropped one does not.
	if len(b.AllActive) != 3 {
		t.Errorf("all-active bucket has %d courses, want 3", len(b.AllActive))
	}
}
