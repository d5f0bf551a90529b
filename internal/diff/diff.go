// Package diff compares the persisted sections of a course against a fresh scrape.
package diff

import "testudot/internal/section"

// Diff compares the persisted records of one course to its current snapshots.
//
// Sections are matched by composite id only. New and changed sections come first in
// the order of current, removals follow in the order of persisted. A composite id
// produces at most one event, repeated ids in current are ignored after their first
// occurrence. Diff is pure, the same inputs always produce the same events.
func Diff(persisted []section.Record, current []section.Snapshot) []Event {
	known := make(map[string]section.Record, len(persisted))
	for _, record := range persisted {
		known[record.CompositeID] = record
	}

	var events []Event
	seen := make(map[string]struct{}, len(current))
	for _, snapshot := range current {
		if _, dup := seen[snapshot.CompositeID]; dup {
			continue
		}
		seen[snapshot.CompositeID] = struct{}{}

		record, ok := known[snapshot.CompositeID]
		if !ok || record.Removed {
			events = append(events, NewSection{Snapshot: snapshot})
			continue
		}
		if record.OpenSeats != snapshot.OpenSeats {
			events = append(events, SeatsChanged{
				CompositeID: snapshot.CompositeID,
				SectionID:   snapshot.SectionID,
				Instructor:  snapshot.Instructor,
				From:        record.OpenSeats,
				To:          snapshot.OpenSeats,
			})
		}
	}

	for _, record := range persisted {
		if record.Removed {
			continue
		}
		if _, present := seen[record.CompositeID]; present {
			continue
		}
		seen[record.CompositeID] = struct{}{}
		events = append(events, SectionRemoved{
			CompositeID: record.CompositeID,
			SectionID:   record.SectionID,
		})
	}

	return events
}
