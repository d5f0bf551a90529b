package subscriptions

import (
	"context"
	"strings"
	"testudot/internal/components/assert"
	"testudot/internal/components/db"
	"testudot/internal/components/telemetry"
)

const (
	report_sql_list   = "sql.list-all"
	report_sql_add    = "sql.add"
	report_sql_remove = "sql.remove"
)

// SQLDirectory keeps subscriptions in the `subscriptions` table.
type SQLDirectory struct {
	qry    *db.Queries
	makeTx db.MakeTx
	tel    telemetry.API
}

func NewSQLDirectory(qry *db.Queries, makeTx db.MakeTx, tel telemetry.API) SQLDirectory {
	assert.NotNil(qry)
	assert.NotNil(makeTx)
	assert.NotNil(tel)
	return SQLDirectory{
		qry:    qry,
		makeTx: makeTx,
		tel:    telemetry.NewScopedAPI("subscriptions", tel),
	}
}

func (d SQLDirectory) ListAll(ctx context.Context) (Mapping, error) {
	rows, err := d.qry.ListSubscriptions(ctx)
	if err != nil {
		d.tel.ReportBroken(report_sql_list, err)
		return nil, err
	}
	out := make(Mapping)
	for _, row := range rows {
		out[row.Email] = append(out[row.Email], row.CourseID)
	}
	return out, nil
}

func (d SQLDirectory) Add(ctx context.Context, email string, courses []string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	courses, err = normalizeCourses(courses)
	if err != nil {
		return err
	}

	txqry, discard, commit, err := d.makeTx(ctx)
	if err != nil {
		d.tel.ReportBroken(report_sql_add, err)
		return err
	}
	defer discard()

	position, err := txqry.GetNextSubscriptionPosition(ctx, email)
	if err != nil {
		d.tel.ReportBroken(report_sql_add, err, email)
		return err
	}
	for _, course := range courses {
		affected, err := txqry.CreateSubscription(ctx, db.CreateSubscriptionParams{
			Email:    email,
			CourseID: course,
			Position: position,
		})
		if err != nil {
			d.tel.ReportBroken(report_sql_add, err, email)
			return err
		}
		position += affected
	}
	return commit()
}

func (d SQLDirectory) Remove(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	affected, err := d.qry.DeleteSubscriptions(ctx, email)
	if err != nil {
		d.tel.ReportBroken(report_sql_remove, err, email)
		return false, err
	}
	return affected > 0, nil
}
