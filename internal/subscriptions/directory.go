// Package subscriptions maps subscriber emails to the courses they watch.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"slices"
	"strings"
)

var (
	ErrNoCourses    = errors.New("no courses given")
	ErrInvalidEmail = errors.New("invalid email address")
)

// Mapping is email -> ordered course ids without duplicates.
type Mapping map[string][]string

// Directory is the subscription directory, implementations must read through
// to their backing storage on every call so edits are visible to the next cycle.
type Directory interface {
	ListAll(ctx context.Context) (Mapping, error)
	// Add merges courses into the email's list, existing courses keep their position.
	Add(ctx context.Context, email string, courses []string) error
	// Remove deletes every subscription of the email and reports whether it had any.
	Remove(ctx context.Context, email string) (found bool, err error)
}

// Recipients returns the sorted emails subscribed to exactly courseID.
func (m Mapping) Recipients(courseID string) []string {
	var out []string
	for email, courses := range m {
		if slices.Contains(courses, courseID) {
			out = append(out, email)
		}
	}
	slices.Sort(out)
	return out
}

// WatchedCourses returns the sorted union of every subscribed course.
func (m Mapping) WatchedCourses() []string {
	var out []string
	for _, courses := range m {
		out = append(out, courses...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Emails returns the sorted emails of the mapping.
func (m Mapping) Emails() []string {
	out := make([]string, 0, len(m))
	for email := range m {
		out = append(out, email)
	}
	slices.Sort(out)
	return out
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: '%s'", ErrInvalidEmail, email)
	}
	return email, nil
}

// normalizeCourses trims every course id and drops blanks and repeats.
func normalizeCourses(courses []string) ([]string, error) {
	var out []string
	for _, course := range courses {
		course = strings.TrimSpace(course)
		if course == "" || slices.Contains(out, course) {
			continue
		}
		out = append(out, course)
	}
	if len(out) == 0 {
		return nil, ErrNoCourses
	}
	return out, nil
}

// merge appends the courses missing from existing, in order.
func merge(existing, courses []string) []string {
	out := slices.Clone(existing)
	for _, course := range courses {
		if !slices.Contains(out, course) {
			out = append(out, course)
		}
	}
	return out
}
