package diff

import "testudot/internal/section"

// Kind names the variant of an Event.
type Kind string

const (
	KindNewSection     Kind = "new_section"
	KindSeatsChanged   Kind = "seats_changed"
	KindSectionRemoved Kind = "section_removed"
)

// Event is a change detected for a single section. It is implemented by exactly
// NewSection, SeatsChanged and SectionRemoved.
type Event interface {
	// Key returns the composite id of the section the event is about.
	Key() string
	Kind() Kind
	isEvent()
}

// NewSection is emitted for a section that was not known, or was tombstoned.
type NewSection struct {
	Snapshot section.Snapshot
}

// SeatsChanged is emitted when the open seat count of a known section differs.
type SeatsChanged struct {
	CompositeID string
	SectionID   string
	Instructor  string
	From        int
	To          int
}

// SectionRemoved is emitted for a known, live section missing from the current scrape.
type SectionRemoved struct {
	CompositeID string
	SectionID   string
}

func (e NewSection) Key() string     { return e.Snapshot.CompositeID }
func (e SeatsChanged) Key() string   { return e.CompositeID }
func (e SectionRemoved) Key() string { return e.CompositeID }

func (NewSection) Kind() Kind     { return KindNewSection }
func (SeatsChanged) Kind() Kind   { return KindSeatsChanged }
func (SectionRemoved) Kind() Kind { return KindSectionRemoved }

func (NewSection) isEvent()     {}
func (SeatsChanged) isEvent()   {}
func (SectionRemoved) isEvent() {}

// Delta is the signed change in open seats.
func (e SeatsChanged) Delta() int {
	return e.To - e.From
}

// Removed returns the composite ids of every SectionRemoved event in order.
func Removed(events []Event) []string {
	var out []string
	for _, e := range events {
		if removed, ok := e.(SectionRemoved); ok {
			out = append(out, removed.CompositeID)
		}
	}
	return out
}
