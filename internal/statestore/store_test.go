package statestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"testudot/internal/components/chrono"
	"testudot/internal/components/db"
	"testudot/internal/components/telemetry"
	"testudot/internal/section"
	"testudot/lib/testutil"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.March, 2, 9, 30, 0, 0, chrono.Eastern())

type storeFactory func(t *testing.T) Store

func factories() map[string]storeFactory {
	clock := chrono.FixedTime{At: now}
	return map[string]storeFactory{
		"sql": func(t *testing.T) Store {
			res := testutil.SetupService(t, testutil.ServiceParams{Name: "statestore"})
			return NewSQLStore(db.New(res.DB), clock, res.Telemetry)
		},
		"file": func(t *testing.T) Store {
			store, err := NewFileStore(t.TempDir(), clock, telemetry.NewRecordingAPI())
			require.NoError(t, err)
			return store
		},
		"memory": func(t *testing.T) Store {
			return NewMemoryStore(clock)
		},
	}
}

func record(course, sectionID string, open int) section.Record {
	return section.Record{
		Snapshot: section.Snapshot{
			CourseID:      course,
			SectionID:     sectionID,
			Instructor:    "Clyde Kruskal",
			TotalSeats:    30,
			OpenSeats:     open,
			WaitlistCount: 0,
			MeetingTimes: []section.MeetingTime{
				{Days: "MWF", StartTime: "10:00am", EndTime: "10:50am"},
			},
			CompositeID: section.CompositeID(course, sectionID),
		},
		LastUpdated: now.Add(-time.Hour),
	}
}

var compareRecords = cmpopts.EquateApproxTime(time.Millisecond)

func eachStore(t *testing.T, test func(t *testing.T, ctx context.Context, store Store)) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			test(t, ctx, factory(t))
		})
	}
}

func TestFindUnknownCourse(t *testing.T) {
	eachStore(t, func(t *testing.T, ctx context.Context, store Store) {
		records, err := store.FindByCourse(ctx, "CMSC999")
		require.NoError(t, err)
		require.Empty(t, records)
	})
}

func TestUpsertInsertionOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, ctx context.Context, store Store) {
		expected := []section.Record{
			record("CMSC351", "0201", 3),
			record("CMSC351", "0101", 0),
			record("CMSC351", "0301", 12),
		}
		for _, r := range expected {
			require.NoError(t, store.Upsert(ctx, r))
		}
		require.NoError(t, store.Upsert(ctx, record("MATH140", "0101", 5)))

		// replacing a record keeps its position
		updated := record("CMSC351", "0101", 4)
		updated.LastUpdated = now
		require.NoError(t, store.Upsert(ctx, updated))
		expected[1] = updated

		records, err := store.FindByCourse(ctx, "CMSC351")
		require.NoError(t, err)
		if diff := cmp.Diff(expected, records, compareRecords); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestMarkRemovedAndResurrect(t *testing.T) {
	eachStore(t, func(t *testing.T, ctx context.Context, store Store) {
		require.NoError(t, store.Upsert(ctx, record("CMSC351", "0101", 3)))
		require.NoError(t, store.MarkRemoved(ctx, "CMSC351-0101"))
		require.NoError(t, store.MarkRemoved(ctx, "CMSC351-0101"))

		records, err := store.FindByCourse(ctx, "CMSC351")
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.True(t, records[0].Removed)
		require.True(t, records[0].LastUpdated.Equal(now))

		require.NoError(t, store.Upsert(ctx, record("CMSC351", "0101", 3)))
		records, err = store.FindByCourse(ctx, "CMSC351")
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.False(t, records[0].Removed)
	})
}

func TestMarkRemovedUnknown(t *testing.T) {
	eachStore(t, func(t *testing.T, ctx context.Context, store Store) {
		err := store.MarkRemoved(ctx, "CMSC351-9999")
		require.True(t, errors.Is(err, ErrNotFound), err)
	})
}

func TestUpsertIdentityMismatch(t *testing.T) {
	eachStore(t, func(t *testing.T, ctx context.Context, store Store) {
		r := record("CMSC351", "0101", 3)
		r.CompositeID = "CMSC351-0102"
		err := store.Upsert(ctx, r)
		require.True(t, errors.Is(err, ErrIdentityMismatch), err)
	})
}

func TestUpsertCompositeConflict(t *testing.T) {
	eachStore(t, func(t *testing.T, ctx context.Context, store Store) {
		// "AB-1" + "2" and "AB" + "1-2" share the composite id "AB-1-2"
		require.NoError(t, store.Upsert(ctx, record("AB-1", "2", 3)))
		err := store.Upsert(ctx, record("AB", "1-2", 3))
		require.True(t, errors.Is(err, ErrCompositeConflict), err)

		records, err := store.FindByCourse(ctx, "AB")
		require.NoError(t, err)
		require.Empty(t, records)
		records, err = store.FindByCourse(ctx, "AB-1")
		require.NoError(t, err)
		require.Len(t, records, 1)
	})
}

func TestNilMeetingTimesStoredEmpty(t *testing.T) {
	eachStore(t, func(t *testing.T, ctx context.Context, store Store) {
		r := record("CMSC351", "0101", 3)
		r.MeetingTimes = nil
		require.NoError(t, store.Upsert(ctx, r))

		records, err := store.FindByCourse(ctx, "CMSC351")
		require.NoError(t, err)
		require.NotNil(t, records[0].MeetingTimes)
		require.Empty(t, records[0].MeetingTimes)
	})
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	tel := telemetry.NewRecordingAPI()
	store, err := NewFileStore(dir, chrono.FixedTime{At: now}, tel)
	require.NoError(t, err)
	require.NoError(t, writeRaw(store.coursePath("CMSC351"), "{not json"))

	_, err = store.FindByCourse(context.Background(), "CMSC351")
	require.Error(t, err)
	require.Len(t, tel.Reports("broken", report_file_read), 1)
}

func writeRaw(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
