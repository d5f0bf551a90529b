// Package notify turns the events of a cycle into one email per course.
package notify

import (
	"context"
	"fmt"
	"testudot/internal/components/assert"
	"testudot/internal/components/telemetry"
	"testudot/internal/diff"
	"testudot/internal/mail"
	"testudot/internal/subscriptions"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("notify")

const (
	report_router_list_recipients = "router.list-recipients"
	report_router_render          = "router.render"
	report_router_send            = "router.send"
)

// Dispatch describes what Notify did, Sent is false when nothing was dispatched.
type Dispatch struct {
	Recipients []string
	Message    mail.Message
	Sent       bool
}

type Router struct {
	directory subscriptions.Directory
	transport mail.Transport
	tel       telemetry.API
}

func NewRouter(directory subscriptions.Directory, transport mail.Transport, tel telemetry.API) Router {
	assert.NotNil(directory)
	assert.NotNil(transport)
	assert.NotNil(tel)
	return Router{
		directory: directory,
		transport: transport,
		tel:       telemetry.NewScopedAPI("notify", tel),
	}
}

// Recipients reads the directory and returns the sorted emails subscribed to courseID.
func (r Router) Recipients(ctx context.Context, courseID string) ([]string, error) {
	mapping, err := r.directory.ListAll(ctx)
	if err != nil {
		r.tel.ReportBroken(report_router_list_recipients, err, courseID)
		return nil, err
	}
	return mapping.Recipients(courseID), nil
}

// Compose builds the message of a course without sending it.
func (r Router) Compose(courseID string, recipients []string, events []diff.Event) (mail.Message, error) {
	html, err := RenderHTML(courseID, events)
	if err != nil {
		return mail.Message{}, err
	}
	text, err := RenderText(html)
	if err != nil {
		// the html part alone is still deliverable
		r.tel.ReportWarning(report_router_render, fmt.Errorf("text alternative: %w", err), courseID)
		text = ""
	}
	return mail.Message{
		To:      recipients,
		Subject: Subject(courseID),
		HTML:    html,
		Text:    text,
	}, nil
}

// Notify sends one message for the events of a course to everyone subscribed
// to it. No events or no recipients is not an error, nothing is sent.
// A returned error never means the events should be retried.
func (r Router) Notify(ctx context.Context, courseID string, events []diff.Event) (Dispatch, error) {
	if len(events) == 0 {
		return Dispatch{}, nil
	}

	ctx, span := tracer.Start(ctx, "Notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("course_id", courseID),
		attribute.Int("events", len(events)),
	)

	recipients, err := r.Recipients(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Dispatch{}, err
	}
	if len(recipients) == 0 {
		r.tel.ReportDebug("no recipients", courseID)
		return Dispatch{}, nil
	}

	msg, err := r.Compose(courseID, recipients, events)
	if err != nil {
		r.tel.ReportBroken(report_router_render, err, courseID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Dispatch{Recipients: recipients}, err
	}
	dispatch := Dispatch{
		Recipients: recipients,
		Message:    msg,
	}

	err = r.transport.Send(ctx, msg)
	if err != nil {
		r.tel.ReportWarning(report_router_send, err, courseID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dispatch, err
	}
	dispatch.Sent = true
	return dispatch, nil
}
