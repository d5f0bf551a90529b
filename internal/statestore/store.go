// Package statestore persists the last known state of every section, keyed by
// composite id. Removed sections are tombstoned, never deleted.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"testudot/internal/section"
)

var (
	// ErrCompositeConflict is returned when a composite id is already owned by another course.
	ErrCompositeConflict = errors.New("composite id belongs to another course")
	// ErrIdentityMismatch is returned when a record's composite id is not derived from its course and section.
	ErrIdentityMismatch = errors.New("composite id does not match course and section")
	// ErrNotFound is returned when marking a composite id that was never stored.
	ErrNotFound = errors.New("section not found")
)

// Store is the state store adapter consumed by the monitor.
type Store interface {
	// FindByCourse returns every record of a course, tombstones included, in insertion order.
	FindByCourse(ctx context.Context, courseID string) ([]section.Record, error)
	// Upsert inserts or replaces the record with the same composite id.
	Upsert(ctx context.Context, record section.Record) error
	// MarkRemoved tombstones a record, marking a tombstone again is a no-op.
	MarkRemoved(ctx context.Context, compositeID string) error
}

func checkIdentity(record section.Record) error {
	expected := section.CompositeID(record.CourseID, record.SectionID)
	if record.CompositeID != expected {
		return fmt.Errorf(
			"%w: got '%s', expected '%s'",
			ErrIdentityMismatch, record.CompositeID, expected,
		)
	}
	return nil
}

// live records are written with Removed cleared, a tombstone only ever comes
// from MarkRemoved.
func liveCopy(record section.Record) section.Record {
	record.Removed = false
	if record.MeetingTimes == nil {
		record.MeetingTimes = []section.MeetingTime{}
	}
	return record
}
