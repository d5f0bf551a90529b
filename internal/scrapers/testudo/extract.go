package testudo

import (
	"errors"
	"strings"
	"testudot/internal/section"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnrecognizedMarkup is returned for markup that has no sections and does
// not look like a results page either.
var ErrUnrecognizedMarkup = errors.New("unrecognized testudo markup")

const noResultsMessage = "No courses matched"

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

func extractSection(courseID string, sel *goquery.Selection) section.Raw {
	var instructors []string
	sel.Find(".section-instructor").Each(func(_ int, inst *goquery.Selection) {
		name := text(inst)
		if name != "" {
			instructors = append(instructors, name)
		}
	})

	var meetingTimes []section.RawMeetingTime
	sel.Find(".section-day-time-group").Each(func(_ int, group *goquery.Selection) {
		meetingTimes = append(meetingTimes, section.RawMeetingTime{
			Days:      text(group.Find(".section-days").First()),
			StartTime: text(group.Find(".class-start-time").First()),
			EndTime:   text(group.Find(".class-end-time").First()),
		})
	})

	return section.Raw{
		CourseID:   courseID,
		SectionID:  text(sel.Find(".section-id").First()),
		Instructor: strings.Join(instructors, ", "),
		TotalSeats: text(sel.Find(".total-seats-count").First()),
		OpenSeats:  text(sel.Find(".open-seats-count").First()),
		// the second .waitlist-count of a section is the holdfile
		WaitlistCount: text(sel.Find(".waitlist-count").First()),
		MeetingTimes:  meetingTimes,
	}
}

// ExtractSections parses a course search results page into raw sections in
// page order. A results page without sections yields an empty slice.
func ExtractSections(markup string) ([]section.Raw, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, ErrUnrecognizedMarkup
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	out := []section.Raw{}
	courses := doc.Find(".course")
	if courses.Length() > 0 {
		courses.Each(func(_ int, course *goquery.Selection) {
			courseID := strings.TrimSpace(course.AttrOr("id", ""))
			course.Find(".section").Each(func(_ int, sel *goquery.Selection) {
				out = append(out, extractSection(courseID, sel))
			})
		})
	} else {
		doc.Find(".section").Each(func(_ int, sel *goquery.Selection) {
			out = append(out, extractSection("", sel))
		})
	}

	if len(out) > 0 {
		return out, nil
	}
	if doc.Find("#courses-page").Length() > 0 ||
		strings.Contains(doc.Text(), noResultsMessage) {
		return out, nil
	}
	return nil, ErrUnrecognizedMarkup
}
