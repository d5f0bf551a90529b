package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/components/db"
	"testudot/internal/components/telemetry"
	"testudot/internal/section"
	"time"
)

const (
	report_sql_find         = "sql.find-by-course"
	report_sql_decode_times = "sql.decode-class-times"
	report_sql_upsert       = "sql.upsert"
	report_sql_mark_removed = "sql.mark-removed"
)

// SQLStore keeps records in the `sections` table of sqlite or libsql.
type SQLStore struct {
	qry  *db.Queries
	time chrono.TimeAPI
	tel  telemetry.API
}

func NewSQLStore(qry *db.Queries, time chrono.TimeAPI, tel telemetry.API) SQLStore {
	assert.NotNil(qry)
	assert.NotNil(time)
	assert.NotNil(tel)
	return SQLStore{
		qry:  qry,
		time: time,
		tel:  telemetry.NewScopedAPI("statestore", tel),
	}
}

func (s SQLStore) FindByCourse(ctx context.Context, courseID string) ([]section.Record, error) {
	rows, err := s.qry.GetSectionsByCourse(ctx, courseID)
	if err != nil {
		s.tel.ReportBroken(report_sql_find, err, courseID)
		return nil, err
	}

	records := make([]section.Record, 0, len(rows))
	for _, row := range rows {
		meetingTimes := []section.MeetingTime{}
		err := json.Unmarshal([]byte(row.ClassTimes), &meetingTimes)
		if err != nil {
			// a corrupt column only loses meeting times, diffing only needs seats.
			s.tel.ReportWarning(report_sql_decode_times, err, row.CompositeID)
			meetingTimes = []section.MeetingTime{}
		}
		records = append(records, section.Record{
			Snapshot: section.Snapshot{
				CourseID:      row.CourseID,
				SectionID:     row.SectionID,
				Instructor:    row.Instructor,
				TotalSeats:    int(row.TotalSeats),
				OpenSeats:     int(row.OpenSeats),
				WaitlistCount: int(row.WaitlistCount),
				MeetingTimes:  meetingTimes,
				CompositeID:   row.CompositeID,
			},
			LastUpdated: time.UnixMilli(row.LastUpdated).In(chrono.Eastern()),
			Removed:     row.Removed,
		})
	}
	return records, nil
}

func (s SQLStore) Upsert(ctx context.Context, record section.Record) error {
	err := checkIdentity(record)
	if err != nil {
		return err
	}
	record = liveCopy(record)

	classTimes, err := json.Marshal(record.MeetingTimes)
	if err != nil {
		return err
	}
	affected, err := s.qry.UpsertSection(ctx, db.UpsertSectionParams{
		CompositeID:   record.CompositeID,
		CourseID:      record.CourseID,
		SectionID:     record.SectionID,
		Instructor:    record.Instructor,
		TotalSeats:    int64(record.TotalSeats),
		OpenSeats:     int64(record.OpenSeats),
		WaitlistCount: int64(record.WaitlistCount),
		ClassTimes:    string(classTimes),
		LastUpdated:   record.LastUpdated.UnixMilli(),
	})
	if err != nil {
		s.tel.ReportBroken(report_sql_upsert, err, record.CompositeID)
		return err
	}
	if affected == 0 {
		err = fmt.Errorf("%w: '%s'", ErrCompositeConflict, record.CompositeID)
		s.tel.ReportBroken(report_sql_upsert, err, record.CourseID)
		return err
	}
	return nil
}

func (s SQLStore) MarkRemoved(ctx context.Context, compositeID string) error {
	affected, err := s.qry.MarkSectionRemoved(ctx, db.MarkSectionRemovedParams{
		LastUpdated: s.time.Now().UnixMilli(),
		CompositeID: compositeID,
	})
	if err != nil {
		s.tel.ReportBroken(report_sql_mark_removed, err, compositeID)
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: '%s'", ErrNotFound, compositeID)
	}
	return nil
}
