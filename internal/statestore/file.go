package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/section"
	"time"
)

const (
	report_file_read  = "file.read"
	report_file_write = "file.write"
)

const filePrefix = "sections-"

// FileStore keeps one json file per course in a directory, the file holds the
// records of that course in insertion order.
type FileStore struct {
	dir  string
	time chrono.TimeAPI
	tel  telemetry.API

	mutex sync.Mutex
}

func NewFileStore(dir string, time chrono.TimeAPI, tel telemetry.API) (*FileStore, error) {
	assert.NotEmptyStr(dir)
	assert.NotNil(time)
	assert.NotNil(tel)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	return &FileStore{
		dir:  dir,
		time: time,
		tel:  telemetry.NewScopedAPI("statestore", tel),
	}, nil
}

func (s *FileStore) coursePath(courseID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%s.json", filePrefix, courseID))
}

func (s *FileStore) read(path string) ([]section.Record, error) {
	buff, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		s.tel.ReportBroken(report_file_read, err, path)
		return nil, err
	}
	var records []section.Record
	err = json.Unmarshal(buff, &records)
	if err != nil {
		err = fmt.Errorf("decode '%s': %w", path, err)
		s.tel.ReportBroken(report_file_read, err)
		return nil, err
	}
	return records, nil
}

// write replaces the file through a rename so readers never see a partial file.
func (s *FileStore) write(path string, records []section.Record) error {
	buff, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".sections-*.tmp")
	if err != nil {
		s.tel.ReportBroken(report_file_write, err, path)
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(buff)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		s.tel.ReportBroken(report_file_write, err, path)
		return err
	}
	return nil
}

// locate finds the course file that holds a composite id.
func (s *FileStore) locate(compositeID string) (string, []section.Record, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*.json"))
	if err != nil {
		return "", nil, err
	}
	for _, path := range paths {
		records, err := s.read(path)
		if err != nil {
			return "", nil, err
		}
		for _, record := range records {
			if record.CompositeID == compositeID {
				return path, records, nil
			}
		}
	}
	return "", nil, nil
}

func (s *FileStore) FindByCourse(ctx context.Context, courseID string) ([]section.Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	records, err := s.read(s.coursePath(courseID))
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].MeetingTimes == nil {
			records[i].MeetingTimes = []section.MeetingTime{}
		}
	}
	return records, nil
}

func (s *FileStore) Upsert(ctx context.Context, record section.Record) error {
	err := checkIdentity(record)
	if err != nil {
		return err
	}
	if strings.ContainsAny(record.CourseID, `/\`) {
		return fmt.Errorf("invalid course id '%s'", record.CourseID)
	}
	record = liveCopy(record)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := s.coursePath(record.CourseID)
	owner, _, err := s.locate(record.CompositeID)
	if err != nil {
		return err
	}
	if owner != "" && owner != path {
		return fmt.Errorf("%w: '%s'", ErrCompositeConflict, record.CompositeID)
	}

	records, err := s.read(path)
	if err != nil {
		return err
	}
	return s.write(path, upsertInto(records, record))
}

func (s *FileStore) MarkRemoved(ctx context.Context, compositeID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	path, records, err := s.locate(compositeID)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: '%s'", ErrNotFound, compositeID)
	}
	markIn(records, compositeID, s.time.Now())
	return s.write(path, records)
}

func upsertInto(records []section.Record, record section.Record) []section.Record {
	for i := range records {
		if records[i].CompositeID == record.CompositeID {
			records[i] = record
			return records
		}
	}
	return append(records, record)
}

func markIn(records []section.Record, compositeID string, now time.Time) {
	for i := range records {
		if records[i].CompositeID == compositeID && !records[i].Removed {
			records[i].Removed = true
			records[i].LastUpdated = now
		}
	}
}
