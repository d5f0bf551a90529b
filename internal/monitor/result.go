package monitor

import (
	"testudot/internal/diff"
	"time"
)

// State is a step of a course's monitoring cycle.
type State string

const (
	StateFetching   State = "fetching"
	StateDiffing    State = "diffing"
	StateNotifying  State = "notifying"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Status is the outcome of a cycle.
type Status string

const (
	StatusOk            Status = "ok"
	StatusFetchFailed   Status = "fetch_failed"
	StatusStoreFailed   Status = "store_failed"
	StatusPersistFailed Status = "persist_failed"
	StatusPanicked      Status = "panicked"
)

// CycleResult reports a single course's cycle. State is the last state the
// cycle reached, it is StateFailed whenever Status is not StatusOk.
type CycleResult struct {
	CourseID      string
	Status        Status
	State         State
	EventsEmitted int
	Events        []diff.Event
	// Recipients is who the notification was addressed to, it is empty when
	// there was no one to notify.
	Recipients []string
	Err        error
	// NotifyErr is set when dispatching failed, it never changes Status.
	NotifyErr error
	Duration  time.Duration
}

func (r CycleResult) Ok() bool {
	return r.Status == StatusOk
}
