// Package monitor drives the fetch, normalize, diff, notify and persist cycle
// of every watched course.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"testudot/internal/components/assert"
	"testudot/internal/components/chrono"
	"testudot/internal/components/telemetry"
	"testudot/internal/diff"
	"testudot/internal/notify"
	"testudot/internal/section"
	"testudot/internal/statestore"
	"testudot/internal/subscriptions"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("monitor")
	meter  = otel.Meter("monitor")
)

const (
	report_monitor_fetch    = "monitor.fetch"
	report_monitor_store    = "monitor.find-by-course"
	report_monitor_notify   = "monitor.notify"
	report_monitor_persist  = "monitor.persist"
	report_monitor_panic    = "monitor.panic"
	report_monitor_watched  = "monitor.run-watched"
	report_monitor_events   = "monitor.events"
	report_monitor_failures = "monitor.failures"
)

// ErrEmptyScrape is the fetch failure of an empty scrape under EmptyScrapeFail.
var ErrEmptyScrape = errors.New("scrape returned no sections")

// Source fetches and parses a course's search page.
type Source interface {
	FetchCourseMarkup(ctx context.Context, courseID string) (string, error)
	// ExtractSections returns an empty slice, not an error, for a course without sections.
	ExtractSections(markup string) ([]section.Raw, error)
}

// Notifier dispatches the events of a course.
type Notifier interface {
	Notify(ctx context.Context, courseID string, events []diff.Event) (notify.Dispatch, error)
}

// EmptyScrapePolicy decides what a successful scrape without sections means.
type EmptyScrapePolicy string

const (
	// EmptyScrapeRemove treats every live section as removed.
	EmptyScrapeRemove EmptyScrapePolicy = "remove"
	// EmptyScrapeFail treats the scrape as a fetch failure.
	EmptyScrapeFail EmptyScrapePolicy = "fail"
)

type Options struct {
	EmptyScrapePolicy EmptyScrapePolicy
	// CycleTimeout bounds the network and store calls of one cycle, 0 means no bound.
	CycleTimeout time.Duration
}

type Monitor struct {
	source    Source
	store     statestore.Store
	notifier  Notifier
	directory subscriptions.Directory
	time      chrono.TimeAPI
	tel       telemetry.API
	options   Options

	eventCounter metric.Int64Counter
}

func NewMonitor(
	source Source,
	store statestore.Store,
	notifier Notifier,
	directory subscriptions.Directory,
	clock chrono.TimeAPI,
	tel telemetry.API,
	options Options,
) *Monitor {
	assert.NotNil(source)
	assert.NotNil(store)
	assert.NotNil(notifier)
	assert.NotNil(directory)
	assert.NotNil(clock)
	assert.NotNil(tel)

	if options.EmptyScrapePolicy == "" {
		options.EmptyScrapePolicy = EmptyScrapeRemove
	}
	assert.True(
		options.EmptyScrapePolicy == EmptyScrapeRemove || options.EmptyScrapePolicy == EmptyScrapeFail,
		fmt.Sprintf("unknown empty scrape policy '%s'", options.EmptyScrapePolicy),
	)

	eventCounter, err := meter.Int64Counter(
		"testudot.events",
		metric.WithDescription("change events emitted by monitoring cycles"),
	)
	if err != nil {
		panic(err)
	}

	return &Monitor{
		source:       source,
		store:        store,
		notifier:     notifier,
		directory:    directory,
		time:         clock,
		tel:          telemetry.NewScopedAPI("monitor", tel),
		options:      options,
		eventCounter: eventCounter,
	}
}

// TermID returns the term of the source when it has one.
func (m *Monitor) TermID() string {
	termed, ok := m.source.(interface{ TermID() string })
	if !ok {
		return ""
	}
	return termed.TermID()
}

func (m *Monitor) fail(result *CycleResult, status Status, err error) {
	result.Status = status
	result.State = StateFailed
	result.Err = err
	m.tel.ReportCount(report_monitor_failures, 1)
}

// RunCycle runs a single course's cycle. Cancelling ctx does not stop a cycle
// that has started, a failure or panic is returned in the result.
func (m *Monitor) RunCycle(ctx context.Context, courseID string) (result CycleResult) {
	started := time.Now()
	result = CycleResult{
		CourseID: courseID,
		State:    StateFetching,
	}

	ctx = context.WithoutCancel(ctx)
	if m.options.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.options.CycleTimeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "RunCycle")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseID))

	defer func() {
		rec := recover()
		if rec != nil {
			err := fmt.Errorf("panic in %s: %v", result.State, rec)
			m.tel.ReportBroken(report_monitor_panic, err, courseID, string(debug.Stack()))
			m.fail(&result, StatusPanicked, err)
		}
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
		span.SetAttributes(attribute.String("status", string(result.Status)))
		result.Duration = time.Since(started)
	}()

	current, err := m.fetch(ctx, courseID)
	if err != nil {
		m.tel.ReportWarning(report_monitor_fetch, err, courseID)
		m.fail(&result, StatusFetchFailed, err)
		return result
	}

	result.State = StateDiffing
	persisted, err := m.store.FindByCourse(ctx, courseID)
	if err != nil {
		err = fmt.Errorf("find by course: %w", err)
		m.tel.ReportBroken(report_monitor_store, err, courseID)
		m.fail(&result, StatusStoreFailed, err)
		return result
	}
	events := diff.Diff(persisted, current)
	result.Events = events
	result.EventsEmitted = len(events)
	m.countEvents(ctx, courseID, events)

	if len(events) > 0 {
		result.State = StateNotifying
		dispatch, err := m.notifier.Notify(ctx, courseID, events)
		result.Recipients = dispatch.Recipients
		if err != nil {
			m.tel.ReportWarning(report_monitor_notify, err, courseID)
			result.NotifyErr = err
		}
	}

	result.State = StatePersisting
	err = m.persist(ctx, current, events)
	if err != nil {
		m.tel.ReportBroken(report_monitor_persist, err, courseID)
		m.fail(&result, StatusPersistFailed, err)
		return result
	}

	result.State = StateDone
	result.Status = StatusOk
	m.tel.ReportDebug("cycle done", courseID, len(events))
	return result
}

func (m *Monitor) fetch(ctx context.Context, courseID string) ([]section.Snapshot, error) {
	markup, err := m.source.FetchCourseMarkup(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	raws, err := m.source.ExtractSections(markup)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	current := section.NormalizeAll(courseID, raws)
	if len(current) == 0 && m.options.EmptyScrapePolicy == EmptyScrapeFail {
		return nil, ErrEmptyScrape
	}
	return current, nil
}

// persist runs every write even when some fail, the failures are joined.
func (m *Monitor) persist(ctx context.Context, current []section.Snapshot, events []diff.Event) error {
	now := m.time.Now()
	var errs []error
	for _, snapshot := range current {
		err := m.store.Upsert(ctx, section.NewRecord(snapshot, now))
		if err != nil {
			errs = append(errs, fmt.Errorf("upsert '%s': %w", snapshot.CompositeID, err))
		}
	}
	for _, compositeID := range diff.Removed(events) {
		err := m.store.MarkRemoved(ctx, compositeID)
		if err != nil {
			errs = append(errs, fmt.Errorf("mark removed '%s': %w", compositeID, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Monitor) countEvents(ctx context.Context, courseID string, events []diff.Event) {
	if len(events) == 0 {
		return
	}
	counts := map[diff.Kind]int64{}
	for _, e := range events {
		counts[e.Kind()]++
	}
	for kind, count := range counts {
		m.eventCounter.Add(ctx, count, metric.WithAttributes(
			attribute.String("course_id", courseID),
			attribute.String("kind", string(kind)),
		))
	}
	m.tel.ReportCount(report_monitor_events, int64(len(events)))
}
