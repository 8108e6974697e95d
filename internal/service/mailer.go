package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/consultlink/api/pkg/retry"
)

// Mailer delivers a plain-text email to one recipient. Deliveries are
// fire-and-forget from the caller's perspective; implementations handle
// their own retries.
type Mailer interface {
	Send(ctx context.Context, toName, toAddress, subject, body string) error
}

// SendgridMailer delivers email through the SendGrid REST API with
// transient-failure retries.
type SendgridMailer struct {
	client      *sendgrid.Client
	from        *sgmail.Email
	subjPrefix  string
	retryConfig retry.Config
	logger      zerolog.Logger
}

// NewSendgridMailer constructs a SendGrid-backed mailer.
func NewSendgridMailer(apiKey, fromName, fromAddress, appName string, logger zerolog.Logger) *SendgridMailer {
	return &SendgridMailer{
		client:      sendgrid.NewSendClient(apiKey),
		from:        sgmail.NewEmail(fromName, fromAddress),
		subjPrefix:  "[" + appName + "] ",
		retryConfig: retry.DefaultConfig(),
		logger:      logger.With().Str("component", "sendgrid_mailer").Logger(),
	}
}

func (m *SendgridMailer) Send(ctx context.Context, toName, toAddress, subject, body string) error {
	message := sgmail.NewSingleEmail(m.from, m.subjPrefix+subject, sgmail.NewEmail(toName, toAddress), body, "")

	_, err := retry.Do(ctx, m.retryConfig, func(ctx context.Context) (struct{}, error) {
		response, err := m.client.SendWithContext(ctx, message)
		if err != nil {
			return struct{}{}, err
		}
		if response.StatusCode >= 400 {
			return struct{}{}, &retry.HTTPStatusError{StatusCode: response.StatusCode, Body: response.Body}
		}
		return struct{}{}, nil
	})
	if err != nil {
		m.logger.Error().Err(err).Str("to", toAddress).Msg("email delivery failed")
		return err
	}

	m.logger.Debug().Str("to", toAddress).Str("subject", subject).Msg("email delivered")
	return nil
}

// LogMailer logs outbound email instead of delivering it. Used when no
// SendGrid key is configured.
type LogMailer struct {
	logger zerolog.Logger
}

// NewLogMailer constructs a logging mailer.
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With().Str("component", "log_mailer").Logger()}
}

func (m *LogMailer) Send(_ context.Context, _, toAddress, subject, body string) error {
	m.logger.Info().Str("to", toAddress).Str("subject", subject).Str("body", body).Msg("email (not sent)")
	return nil
}
