// Package mail delivers notification messages.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"testudot/internal/components/assert"
	"testudot/internal/components/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("mail")

const (
	report_smtp_send     = "smtp.send"
	report_disabled_send = "disabled.send"
)

// ErrTransportDisabled is returned by Disabled, no credentials were configured.
var ErrTransportDisabled = errors.New("email transport disabled")

// Message is one email addressed to every recipient in To.
type Message struct {
	To      []string
	Subject string
	HTML    string
	// Text is the plain alternative of HTML.
	Text string
}

type Transport interface {
	Send(ctx context.Context, msg Message) error
}

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// Configured reports whether credentials were given.
func (c SmtpConfig) Configured() bool {
	return c.EmailAddress != "" && c.Password != ""
}

func (c SmtpConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

type SMTP struct {
	config SmtpConfig
	tel    telemetry.API
}

func NewSMTP(config SmtpConfig, tel telemetry.API) SMTP {
	assert.NotEmptyStr(config.Server)
	assert.NotNil(tel)
	return SMTP{
		config: config,
		tel:    telemetry.NewScopedAPI("mail", tel),
	}
}

func (s SMTP) Send(ctx context.Context, msg Message) error {
	_, span := tracer.Start(ctx, "Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("subject", msg.Subject),
		attribute.Int("recipients", len(msg.To)),
	)

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("testudot <%s>", s.config.EmailAddress)
	mail.To = msg.To
	mail.Subject = msg.Subject
	mail.HTML = []byte(msg.HTML)
	mail.Text = []byte(msg.Text)

	err := s.send(ctx, mail)
	if err != nil {
		s.tel.ReportBroken(report_smtp_send, err, msg.Subject)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// send bounds the delivery by ctx, email.Send itself takes no context. A send
// abandoned on ctx.Done finishes or fails in the background.
func (s SMTP) send(ctx context.Context, mail *email.Email) error {
	done := make(chan error, 1)
	go func() {
		err := mail.Send(
			s.config.addr(),
			smtp.PlainAuth("", s.config.EmailAddress, s.config.Password, s.config.Server),
		)
		if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
			err = mail.Send(s.config.addr(), nil)
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send: %w", ctx.Err())
	}
}

// Disabled is the transport used when no credentials are configured, sending
// only logs a warning.
type Disabled struct {
	tel telemetry.API
}

func NewDisabled(tel telemetry.API) Disabled {
	assert.NotNil(tel)
	return Disabled{tel: telemetry.NewScopedAPI("mail", tel)}
}

func (d Disabled) Send(ctx context.Context, msg Message) error {
	d.tel.ReportWarning(report_disabled_send, ErrTransportDisabled, msg.Subject, msg.To)
	return ErrTransportDisabled
}

// Log is the transport of dry runs, messages are only reported.
type Log struct {
	tel telemetry.API
}

func NewLog(tel telemetry.API) Log {
	assert.NotNil(tel)
	return Log{tel: telemetry.NewScopedAPI("mail", tel)}
}

func (l Log) Send(ctx context.Context, msg Message) error {
	l.tel.ReportDebug("dry run, not sending", msg.Subject, msg.To)
	return nil
}
