package section

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		courseID string
		raw      Raw
		expected Snapshot
	}{
		{
			name:     "complete section",
			courseID: "CMSC351",
			raw: Raw{
				SectionID:     " 0101 ",
				Instructor:    "Justin \n  Wyss-Gallifent",
				TotalSeats:    "30",
				OpenSeats:     " 5",
				WaitlistCount: "2",
				MeetingTimes: []RawMeetingTime{
					{Days: "MWF", StartTime: "10:00am", EndTime: "10:50am"},
				},
			},
			expected: Snapshot{
				CourseID:      "CMSC351",
				SectionID:     "0101",
				Instructor:    "Justin Wyss-Gallifent",
				TotalSeats:    30,
				OpenSeats:     5,
				WaitlistCount: 2,
				MeetingTimes: []MeetingTime{
					{Days: "MWF", StartTime: "10:00am", EndTime: "10:50am"},
				},
				CompositeID: "CMSC351-0101",
			},
		},
		{
			name:     "missing fields default",
			courseID: "CMSC430",
			raw:      Raw{SectionID: "0201"},
			expected: Snapshot{
				CourseID:     "CMSC430",
				SectionID:    "0201",
				MeetingTimes: []MeetingTime{},
				CompositeID:  "CMSC430-0201",
			},
		},
		{
			name:     "non-numeric counts are zero",
			courseID: "MATH140",
			raw: Raw{
				SectionID:     "0301",
				TotalSeats:    "TBA",
				OpenSeats:     "n/a",
				WaitlistCount: "-4",
			},
			expected: Snapshot{
				CourseID:     "MATH140",
				SectionID:    "0301",
				MeetingTimes: []MeetingTime{},
				CompositeID:  "MATH140-0301",
			},
		},
		{
			name:     "open seats above total are kept",
			courseID: "MATH140",
			raw:      Raw{SectionID: "0302", TotalSeats: "10", OpenSeats: "12"},
			expected: Snapshot{
				CourseID:     "MATH140",
				SectionID:    "0302",
				TotalSeats:   10,
				OpenSeats:    12,
				MeetingTimes: []MeetingTime{},
				CompositeID:  "MATH140-0302",
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			diff := cmp.Diff(test.expected, Normalize(test.courseID, test.raw))
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestNormalizeRecomputesCompositeID(t *testing.T) {
	// the raw course id only filters, identity always comes from the cycle's course
	snapshot := Normalize("CMSC351", Raw{CourseID: "ENGL101", SectionID: "0101"})
	require.Equal(t, "CMSC351-0101", snapshot.CompositeID)
	require.Equal(t, "CMSC351", snapshot.CourseID)
}

func TestNormalizeAll(t *testing.T) {
	raws := []Raw{
		{CourseID: "CMSC351", SectionID: "0101", OpenSeats: "1"},
		{CourseID: "CMSC351H", SectionID: "0101", OpenSeats: "2"},
		{SectionID: "0201", OpenSeats: "3"},
		{CourseID: "CMSC351", SectionID: "  "},
	}

	snapshots := NormalizeAll("CMSC351", raws)
	require.Len(t, snapshots, 2)
	require.Equal(t, "CMSC351-0101", snapshots[0].CompositeID)
	require.Equal(t, 1, snapshots[0].OpenSeats)
	require.Equal(t, "CMSC351-0201", snapshots[1].CompositeID)
	require.Equal(t, 3, snapshots[1].OpenSeats)
}

func TestNormalizeAllIgnoresCourseCase(t *testing.T) {
	raws := []Raw{
		{CourseID: "CMSC351", SectionID: "0101", OpenSeats: "5"},
		{CourseID: "CMSC351H", SectionID: "0101", OpenSeats: "2"},
	}

	snapshots := NormalizeAll("cmsc351", raws)
	require.Len(t, snapshots, 1)
	require.Equal(t, "cmsc351", snapshots[0].CourseID)
	require.Equal(t, "cmsc351-0101", snapshots[0].CompositeID)
	require.Equal(t, 5, snapshots[0].OpenSeats)
}
