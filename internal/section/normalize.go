package section

import (
	"regexp"
	"strconv"
	"strings"
)

// RawMeetingTime is a meeting time as extracted from markup.
type RawMeetingTime struct {
	Days      string
	StartTime string
	EndTime   string
}

// Raw is a section as extracted from markup, every field is the raw text and an
// empty string means the field was missing.
type Raw struct {
	// CourseID is the course the section was listed under, it is empty when the
	// markup does not say.
	CourseID      string
	SectionID     string
	Instructor    string
	TotalSeats    string
	OpenSeats     string
	WaitlistCount string
	MeetingTimes  []RawMeetingTime
}

var whitespace = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// parseCount parses a seat count leniently, missing or non-numeric input is 0.
func parseCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "0"
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Normalize turns a raw section into a Snapshot of the given course. It never fails,
// malformed counts become 0 and the composite id is always recomputed.
func Normalize(courseID string, raw Raw) Snapshot {
	sectionID := strings.TrimSpace(raw.SectionID)

	meetings := make([]MeetingTime, len(raw.MeetingTimes))
	for i, m := range raw.MeetingTimes {
		meetings[i] = MeetingTime{
			Days:      collapse(m.Days),
			StartTime: collapse(m.StartTime),
			EndTime:   collapse(m.EndTime),
		}
	}

	return Snapshot{
		CourseID:      courseID,
		SectionID:     sectionID,
		Instructor:    collapse(raw.Instructor),
		TotalSeats:    nonNegative(parseCount(raw.TotalSeats)),
		OpenSeats:     parseCount(raw.OpenSeats),
		WaitlistCount: nonNegative(parseCount(raw.WaitlistCount)),
		MeetingTimes:  meetings,
		CompositeID:   CompositeID(courseID, sectionID),
	}
}

// NormalizeAll normalizes raw sections in order. Sections listed under a different
// course (course search is a prefix search) and sections without an id are dropped.
// Course ids are compared ignoring case, testudo lists every course in upper case.
func NormalizeAll(courseID string, raws []Raw) []Snapshot {
	out := make([]Snapshot, 0, len(raws))
	for _, raw := range raws {
		listedUnder := strings.TrimSpace(raw.CourseID)
		if listedUnder != "" && !strings.EqualFold(listedUnder, courseID) {
			continue
		}
		if strings.TrimSpace(raw.SectionID) == "" {
			continue
		}
		out = append(out, Normalize(courseID, raw))
	}
	return out
}
