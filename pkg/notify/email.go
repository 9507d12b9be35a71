package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Email is an outbound plain-text email.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// EmailSender delivers emails through a provider.
type EmailSender interface {
	SendEmail(ctx context.Context, msg Email) (providerRef string, err error)
	Name() string
}

// LogEmailSender only records the message; it is the default in development.
type LogEmailSender struct {
	logger *zap.Logger
}

// NewLogEmailSender constructs a log-only sender.
func NewLogEmailSender(logger *zap.Logger) *LogEmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmailSender{logger: logger}
}

// Name identifies the provider.
func (s *LogEmailSender) Name() string { return "log" }

// SendEmail logs the email instead of delivering it.
func (s *LogEmailSender) SendEmail(ctx context.Context, msg Email) (string, error) {
	s.logger.Info("email dispatched (log provider)",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_length", len(msg.Body)),
	)
	return "", nil
}

// SendgridSender delivers emails through the SendGrid v3 API.
type SendgridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendgridSender constructs a SendGrid-backed sender.
func NewSendgridSender(apiKey, fromAddress, fromName string, logger *zap.Logger) *SendgridSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendgridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(fromName, fromAddress),
		logger: logger,
	}
}

// Name identifies the provider.
func (s *SendgridSender) Name() string { return "sendgrid" }

// SendEmail submits the message to SendGrid.
func (s *SendgridSender) SendEmail(ctx context.Context, msg Email) (string, error) {
	resp, err := s.client.Send(s.prepare(msg))
	if err != nil {
		return "", fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	var ref string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		ref = ids[0]
	}
	return ref, nil
}

func (s *SendgridSender) prepare(msg Email) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))
	return m
}
