// Package classifier decides which of a user's course enrollments are
// currently active. Classification is pure: the same course snapshot and
// reference instant always produce the same verdict, and nothing mutates
// the input.
package classifier

import (
	"fmt"
	"time"
)

// Season is an academic season within a calendar year.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
)

// abbrev returns the short form used in course codes ("sp", "su", "fa").
func (s Season) abbrev() string {
	switch s {
	case SeasonSpring:
		return "sp"
	case SeasonSummer:
		return "su"
	case SeasonFall:
		return "fa"
	}
	return ""
}

// TermID identifies an academic term: a season plus a calendar year.
type TermID struct {
	Season Season
	Year   int // four-digit year
}

func (t TermID) String() string {
	return fmt.Sprintf("%s %d", t.Season, t.Year)
}

// CurrentTerm derives the academic term for a reference instant:
// January to May is spring, June to August is summer, September to
// December is fall.
func CurrentTerm(now time.Time) TermID {
	var season Season
	switch m := now.Month(); {
	case m >= time.January && m <= time.May:
		season = SeasonSpring
	case m >= time.June && m <= time.August:
		season = SeasonSummer
	default:
		season = SeasonFall
	}
	return TermID{Season: season, Year: now.Year()}
}

// SurfaceForms expands a term into every textual variant a course name or
// code might use for it, all lowercase. One expansion routine feeds both the
// deny and allow lists so the two can never drift apart.
func (t TermID) SurfaceForms() []string {
	yy := fmt.Sprintf("%02d", t.Year%100)
	names := []string{t.Season.abbrev(), string(t.Season)}

	var forms []string
	for _, name := range names {
		forms = append(forms,
			yy+name,     // 25sp
			name+yy,     // sp25
			name+" "+yy, // sp 25
			yy+" "+name, // 25 sp
		)
	}
	return forms
}

// otherTerms enumerates the terms surrounding current whose surface forms
// should exclude a course: every season of the previous, current, and next
// calendar year except the current term itself.
func otherTerms(current TermID) []TermID {
	seasons := []Season{SeasonSpring, SeasonSummer, SeasonFall}
	var terms []TermID
	for year := current.Year - 1; year <= current.Year+1; year++ {
		for _, season := range seasons {
			t := TermID{Season: season, Year: year}
			if t == current {
				continue
			}
			terms = append(terms, t)
		}
	}
	return terms
}
