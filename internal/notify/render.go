package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"testudot/internal/diff"
	"testudot/internal/section"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

//go:embed changes.html
var changesTemplateSource string

var changesTemplate = template.Must(template.New("changes").Parse(changesTemplateSource))

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

type eventView struct {
	SectionID    string
	Badge        string
	BadgeColor   string
	Instructor   string
	Seats        string
	MeetingTimes []section.MeetingTime
}

type changesView struct {
	CourseID string
	Events   []eventView
}

// Subject is the subject line of a course's change notification.
func Subject(courseID string) string {
	return fmt.Sprintf("changes detected in %s sections", strings.ToLower(courseID))
}

// SeatChangeText describes a seat delta, ex. "3 new seats" or "2 seats fewer".
func SeatChangeText(delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("%d new seats", delta)
	case delta < 0:
		return fmt.Sprintf("%d seats fewer", -delta)
	default:
		return "no net change"
	}
}

func viewEvent(event diff.Event) eventView {
	switch e := event.(type) {
	case diff.NewSection:
		seats := fmt.Sprintf("%d / %d seats available", e.Snapshot.OpenSeats, e.Snapshot.TotalSeats)
		if e.Snapshot.WaitlistCount > 0 {
			seats += fmt.Sprintf(" · %d waitlisted", e.Snapshot.WaitlistCount)
		}
		return eventView{
			SectionID:    e.Snapshot.SectionID,
			Badge:        "New Section",
			BadgeColor:   "#e6fffa",
			Instructor:   e.Snapshot.Instructor,
			Seats:        seats,
			MeetingTimes: e.Snapshot.MeetingTimes,
		}
	case diff.SeatsChanged:
		return eventView{
			SectionID:  e.SectionID,
			Badge:      "Seats Changed",
			BadgeColor: "#fffaf0",
			Instructor: e.Instructor,
			Seats:      fmt.Sprintf("%s (now %d available)", SeatChangeText(e.Delta()), e.To),
		}
	case diff.SectionRemoved:
		return eventView{
			SectionID:  e.SectionID,
			Badge:      "Removed",
			BadgeColor: "#fff5f5",
		}
	}
	panic(fmt.Sprintf("unknown event type %T", event))
}

// RenderHTML renders the notification body of a course from its events, in order.
func RenderHTML(courseID string, events []diff.Event) (string, error) {
	view := changesView{
		CourseID: courseID,
		Events:   make([]eventView, len(events)),
	}
	for i, e := range events {
		view.Events[i] = viewEvent(e)
	}

	buff := bytes.NewBuffer(nil)
	err := changesTemplate.Execute(buff, view)
	if err != nil {
		return "", err
	}
	return buff.String(), nil
}

// RenderText derives the plain text alternative from the html body.
func RenderText(html string) (string, error) {
	return mdConverter.ConvertString(html)
}
