package db

import (
	"context"
)

const getSectionsByCourse = `
select id, composite_id, course_id, section_id, instructor, total_seats,
    open_seats, waitlist_count, class_times, last_updated, removed
from sections
where course_id = ?
order by id
`

func (q *Queries) GetSectionsByCourse(ctx context.Context, courseID string) ([]Section, error) {
	rows, err := q.db.QueryContext(ctx, getSectionsByCourse, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Section
	for rows.Next() {
		var i Section
		if err := rows.Scan(
			&i.ID,
			&i.CompositeID,
			&i.CourseID,
			&i.SectionID,
			&i.Instructor,
			&i.TotalSeats,
			&i.OpenSeats,
			&i.WaitlistCount,
			&i.ClassTimes,
			&i.LastUpdated,
			&i.Removed,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// the where clause keeps a composite id from ever moving between courses, a
// conflicting row is left untouched and the statement affects no rows.
const upsertSection = `
insert into sections (
    composite_id, course_id, section_id, instructor, total_seats,
    open_seats, waitlist_count, class_times, last_updated, removed
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, false)
on conflict (composite_id) do update set
    section_id = excluded.section_id,
    instructor = excluded.instructor,
    total_seats = excluded.total_seats,
    open_seats = excluded.open_seats,
    waitlist_count = excluded.waitlist_count,
    class_times = excluded.class_times,
    last_updated = excluded.last_updated,
    removed = false
where sections.course_id = excluded.course_id
`

type UpsertSectionParams struct {
	CompositeID   string
	CourseID      string
	SectionID     string
	Instructor    string
	TotalSeats    int64
	OpenSeats     int64
	WaitlistCount int64
	ClassTimes    string
	LastUpdated   int64
}

func (q *Queries) UpsertSection(ctx context.Context, arg UpsertSectionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, upsertSection,
		arg.CompositeID,
		arg.CourseID,
		arg.SectionID,
		arg.Instructor,
		arg.TotalSeats,
		arg.OpenSeats,
		arg.WaitlistCount,
		arg.ClassTimes,
		arg.LastUpdated,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markSectionRemoved = `
update sections set
    last_updated = case when removed then last_updated else ? end,
    removed = true
where composite_id = ?
`

type MarkSectionRemovedParams struct {
	LastUpdated int64
	CompositeID string
}

func (q *Queries) MarkSectionRemoved(ctx context.Context, arg MarkSectionRemovedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markSectionRemoved, arg.LastUpdated, arg.CompositeID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listSubscriptions = `
select email, course_id, position from subscriptions
order by email, position
`

func (q *Queries) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subscription
	for rows.Next() {
		var i Subscription
		if err := rows.Scan(&i.Email, &i.CourseID, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getNextSubscriptionPosition = `
select coalesce(max(position), -1) + 1 from subscriptions
where email = ?
`

func (q *Queries) GetNextSubscriptionPosition(ctx context.Context, email string) (int64, error) {
	row := q.db.QueryRowContext(ctx, getNextSubscriptionPosition, email)
	var position int64
	err := row.Scan(&position)
	return position, err
}

const createSubscription = `
insert into subscriptions (email, course_id, position)
values (?, ?, ?)
on conflict (email, course_id) do nothing
`

type CreateSubscriptionParams struct {
	Email    string
	CourseID string
	Position int64
}

func (q *Queries) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createSubscription, arg.Email, arg.CourseID, arg.Position)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSubscriptions = `
delete from subscriptions where email = ?
`

func (q *Queries) DeleteSubscriptions(ctx context.Context, email string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSubscriptions, email)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
