package diff

import (
	"testing"
	"testudot/internal/section"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func snapshot(courseID, sectionID string, open, total int) section.Snapshot {
	return section.Snapshot{
		CourseID:    courseID,
		SectionID:   sectionID,
		Instructor:  "Staff",
		OpenSeats:   open,
		TotalSeats:  total,
		CompositeID: section.CompositeID(courseID, sectionID),
	}
}

func record(courseID, sectionID string, open int, removed bool) section.Record {
	return section.Record{
		Snapshot:    snapshot(courseID, sectionID, open, 30),
		LastUpdated: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
		Removed:     removed,
	}
}

func TestDiffScenarios(t *testing.T) {
	testCases := []struct {
		name      string
		persisted []section.Record
		current   []section.Snapshot
		expected  []Event
	}{
		{
			name:      "first sighting is new",
			persisted: nil,
			current:   []section.Snapshot{snapshot("CMSC351", "0101", 5, 30)},
			expected: []Event{
				NewSection{Snapshot: snapshot("CMSC351", "0101", 5, 30)},
			},
		},
		{
			name:      "open seats changed",
			persisted: []section.Record{record("CMSC351", "0101", 5, false)},
			current:   []section.Snapshot{snapshot("CMSC351", "0101", 3, 30)},
			expected: []Event{
				SeatsChanged{
					CompositeID: "CMSC351-0101",
					SectionID:   "0101",
					Instructor:  "Staff",
					From:        5,
					To:          3,
				},
			},
		},
		{
			name:      "missing section is removed",
			persisted: []section.Record{record("CMSC351", "0101", 5, false)},
			current:   nil,
			expected: []Event{
				SectionRemoved{CompositeID: "CMSC351-0101", SectionID: "0101"},
			},
		},
		{
			name:      "steady state emits nothing",
			persisted: []section.Record{record("CMSC351", "0101", 5, false)},
			current:   []section.Snapshot{snapshot("CMSC351", "0101", 5, 35)},
			expected:  nil,
		},
		{
			name: "new and changed in scrape order then removals in store order",
			persisted: []section.Record{
				record("CMSC351", "0301", 1, false),
				record("CMSC351", "0101", 5, false),
				record("CMSC351", "0201", 2, false),
				record("CMSC351", "0401", 0, false),
			},
			current: []section.Snapshot{
				snapshot("CMSC351", "0501", 9, 30),
				snapshot("CMSC351", "0101", 4, 30),
				snapshot("CMSC351", "0601", 7, 30),
			},
			expected: []Event{
				NewSection{Snapshot: snapshot("CMSC351", "0501", 9, 30)},
				SeatsChanged{CompositeID: "CMSC351-0101", SectionID: "0101", Instructor: "Staff", From: 5, To: 4},
				NewSection{Snapshot: snapshot("CMSC351", "0601", 7, 30)},
				SectionRemoved{CompositeID: "CMSC351-0301", SectionID: "0301"},
				SectionRemoved{CompositeID: "CMSC351-0201", SectionID: "0201"},
				SectionRemoved{CompositeID: "CMSC351-0401", SectionID: "0401"},
			},
		},
		{
			name:      "repeated composite id in scrape yields one event",
			persisted: nil,
			current: []section.Snapshot{
				snapshot("CMSC351", "0101", 5, 30),
				snapshot("CMSC351", "0101", 6, 30),
			},
			expected: []Event{
				NewSection{Snapshot: snapshot("CMSC351", "0101", 5, 30)},
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			diff := cmp.Diff(test.expected, Diff(test.persisted, test.current))
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestDiffIsIdempotent(t *testing.T) {
	persisted := []section.Record{
		record("CMSC351", "0101", 5, false),
		record("CMSC351", "0201", 5, false),
		record("CMSC351", "0301", 5, true),
	}
	current := []section.Snapshot{
		snapshot("CMSC351", "0101", 2, 30),
		snapshot("CMSC351", "0301", 5, 30),
		snapshot("CMSC351", "0401", 5, 30),
	}

	first := Diff(persisted, current)
	second := Diff(persisted, current)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatal(diff)
	}
	require.Len(t, first, 4)
}

func TestDiffIdentityAcrossCourses(t *testing.T) {
	// both courses have a section literally named 0101
	persisted := []section.Record{record("CMSC430", "0101", 5, false)}
	current := []section.Snapshot{snapshot("CMSC351", "0101", 5, 30)}

	events := Diff(persisted, current)
	expected := []Event{
		NewSection{Snapshot: snapshot("CMSC351", "0101", 5, 30)},
		SectionRemoved{CompositeID: "CMSC430-0101", SectionID: "0101"},
	}
	if diff := cmp.Diff(expected, events); diff != "" {
		t.Fatal(diff)
	}

	// a per-course store read never mixes the two, so nothing is removed
	events = Diff(nil, current)
	require.Len(t, events, 1)
	require.Equal(t, KindNewSection, events[0].Kind())
}

func TestDiffTombstoneNotRepeated(t *testing.T) {
	persisted := []section.Record{
		record("CMSC351", "0101", 5, true),
		record("CMSC351", "0201", 5, false),
	}
	current := []section.Snapshot{snapshot("CMSC351", "0201", 5, 30)}

	require.Empty(t, Diff(persisted, current))
	// only the live section is removed, the tombstone stays quiet
	require.Equal(t, []string{"CMSC351-0201"}, Removed(Diff(persisted, nil)))
}

func TestDiffResurrection(t *testing.T) {
	persisted := []section.Record{record("CMSC351", "0101", 5, true)}
	current := []section.Snapshot{snapshot("CMSC351", "0101", 2, 30)}

	events := Diff(persisted, current)
	require.Len(t, events, 1)
	created, ok := events[0].(NewSection)
	require.True(t, ok, "expected NewSection, got %T", events[0])
	require.Equal(t, 2, created.Snapshot.OpenSeats)
}

func TestDiffEmptyCurrentRemovesLiveOnly(t *testing.T) {
	persisted := []section.Record{
		record("CMSC351", "0101", 5, false),
		record("CMSC351", "0201", 0, true),
		record("CMSC351", "0301", 1, false),
	}

	require.Equal(
		t,
		[]string{"CMSC351-0101", "CMSC351-0301"},
		Removed(Diff(persisted, nil)),
	)
}

func TestSeatsChangedDelta(t *testing.T) {
	require.Equal(t, -2, SeatsChanged{From: 5, To: 3}.Delta())
	require.Equal(t, 4, SeatsChanged{From: 0, To: 4}.Delta())
}
