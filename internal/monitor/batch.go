package monitor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RunBatch runs a cycle for every course concurrently, results are in the
// order of courseIDs and every entry is populated.
func (m *Monitor) RunBatch(ctx context.Context, courseIDs []string) []CycleResult {
	batchID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "RunBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch_id", batchID),
		attribute.Int("courses", len(courseIDs)),
	)
	m.tel.ReportDebug("batch started", batchID, courseIDs)

	results := make([]CycleResult, len(courseIDs))
	wg := sync.WaitGroup{}
	for i, courseID := range courseIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.RunCycle(ctx, courseID)
		}()
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.Ok() {
			failed++
		}
	}
	m.tel.ReportDebug("batch done", batchID, "failed", failed)
	return results
}

// RunWatched runs a batch over every course in the subscription directory.
func (m *Monitor) RunWatched(ctx context.Context) ([]CycleResult, error) {
	mapping, err := m.directory.ListAll(ctx)
	if err != nil {
		m.tel.ReportBroken(report_monitor_watched, err)
		return nil, err
	}
	courses := mapping.WatchedCourses()
	if len(courses) == 0 {
		m.tel.ReportWarning(report_monitor_watched, "no courses are being watched")
		return []CycleResult{}, nil
	}
	return m.RunBatch(ctx, courses), nil
}
