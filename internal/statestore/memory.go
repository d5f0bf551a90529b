package statestore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/section"
)

// MemoryStore keeps records in process, it backs dry runs and tests.
type MemoryStore struct {
	time chrono.TimeAPI

	mutex    sync.Mutex
	byCourse map[string][]section.Record
	owner    map[string]string
}

func NewMemoryStore(time chrono.TimeAPI) *MemoryStore {
	assert.NotNil(time)
	return &MemoryStore{
		time:     time,
		byCourse: make(map[string][]section.Record),
		owner:    make(map[string]string),
	}
}

func (s *MemoryStore) FindByCourse(ctx context.Context, courseID string) ([]section.Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return cloneRecords(s.byCourse[courseID]), nil
}

func (s *MemoryStore) Upsert(ctx context.Context, record section.Record) error {
	err := checkIdentity(record)
	if err != nil {
		return err
	}
	record = liveCopy(record)
	record.MeetingTimes = slices.Clone(record.MeetingTimes)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	owner, exists := s.owner[record.CompositeID]
	if exists && owner != record.CourseID {
		return fmt.Errorf("%w: '%s'", ErrCompositeConflict, record.CompositeID)
	}
	s.owner[record.CompositeID] = record.CourseID
	s.byCourse[record.CourseID] = upsertInto(s.byCourse[record.CourseID], record)
	return nil
}

func (s *MemoryStore) MarkRemoved(ctx context.Context, compositeID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	courseID, exists := s.owner[compositeID]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrNotFound, compositeID)
	}
	markIn(s.byCourse[courseID], compositeID, s.time.Now())
	return nil
}

func cloneRecords(records []section.Record) []section.Record {
	out := make([]section.Record, len(records))
	for i, record := range records {
		record.MeetingTimes = slices.Clone(record.MeetingTimes)
		out[i] = record
	}
	return out
}
