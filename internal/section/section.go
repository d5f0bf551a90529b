// Package section holds the canonical shape of a registration section and the
// normalization of raw scraped fields into it.
package section

import "time"

// MeetingTime is one meeting slot of a section, each field is kept in the source format.
type MeetingTime struct {
	Days      string `json:"days"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Snapshot is one registration section at a point in time.
//
// CompositeID is the sole identity key for persistence and diffing, SectionID
// is only unique within a course.
type Snapshot struct {
	CourseID      string        `json:"course_id"`
	SectionID     string        `json:"section_id"`
	Instructor    string        `json:"instructor"`
	TotalSeats    int           `json:"total_seats"`
	OpenSeats     int           `json:"open_seats"`
	WaitlistCount int           `json:"waitlist_count"`
	MeetingTimes  []MeetingTime `json:"class_times"`
	CompositeID   string        `json:"composite_id"`
}

// Record is the last known state of a section as owned by a state store.
type Record struct {
	Snapshot
	LastUpdated time.Time `json:"last_updated"`
	// Removed is a tombstone, removed sections are kept so that a section which
	// reappears is classified as new.
	Removed bool `json:"removed"`
}

// CompositeID returns the system-wide identity of a section.
func CompositeID(courseID, sectionID string) string {
	return courseID + "-" + sectionID
}

// NewRecord creates the record that persists the given snapshot at the given time.
func NewRecord(snapshot Snapshot, now time.Time) Record {
	return Record{
		Snapshot:    snapshot,
		LastUpdated: now,
	}
}
