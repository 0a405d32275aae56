// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email sends the localized account emails: verification codes,
// password reset codes and generated passwords.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"codeberg.org/oliverandrich/go-auth-service/internal/metrics"
	"github.com/wneessen/go-mail"
)

// DefaultTimeout bounds a single SMTP delivery.
const DefaultTimeout = 10 * time.Second

// Mail kinds, used as metric labels.
const (
	KindVerification = "verification"
	KindReset        = "reset"
	KindNewPassword  = "new_password"
)

type message struct {
	to      string
	subject string
	body    string
}

type transport interface {
	send(ctx context.Context, msg message) error
}

// Service renders account emails in the locale carried by the context and
// hands them to SMTP, or to the log when no SMTP host is configured.
type Service struct {
	transport transport
	verifyTTL time.Duration
	resetTTL  time.Duration
}

// NewService creates a new email service.
func NewService(cfg *config.Config) (*Service, error) {
	s := &Service{
		verifyTTL: cfg.Auth.VerifyCodeTTL,
		resetTTL:  cfg.Auth.ResetCodeTTL,
	}

	if cfg.SMTP.Host == "" {
		slog.Warn("SMTP host not configured, emails are written to the log")
		s.transport = logTransport{}
		return s, nil
	}

	t, err := newSMTPTransport(&cfg.SMTP)
	if err != nil {
		return nil, err
	}
	s.transport = t
	return s, nil
}

// SendVerificationCode mails the code that confirms an email address.
func (s *Service) SendVerificationCode(ctx context.Context, to, code string) error {
	return s.deliver(ctx, KindVerification, message{
		to:      to,
		subject: i18n.T(ctx, "email_verification_subject"),
		body: i18n.TData(ctx, "email_verification_body", map[string]any{
			"Code":    code,
			"Minutes": minutes(s.verifyTTL),
		}),
	})
}

// SendResetCode mails the code that authorizes a password reset.
func (s *Service) SendResetCode(ctx context.Context, to, code string) error {
	return s.deliver(ctx, KindReset, message{
		to:      to,
		subject: i18n.T(ctx, "email_reset_subject"),
		body: i18n.TData(ctx, "email_reset_body", map[string]any{
			"Code":    code,
			"Minutes": minutes(s.resetTTL),
		}),
	})
}

// SendNewPassword mails a generated password.
func (s *Service) SendNewPassword(ctx context.Context, to, password string) error {
	return s.deliver(ctx, KindNewPassword, message{
		to:      to,
		subject: i18n.T(ctx, "email_new_password_subject"),
		body: i18n.TData(ctx, "email_new_password_body", map[string]any{
			"Password": password,
		}),
	})
}

func (s *Service) deliver(ctx context.Context, kind string, msg message) error {
	err := s.transport.send(ctx, msg)
	metrics.EmailsSentTotal.WithLabelValues(kind, metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("sending %s email: %w", kind, err)
	}
	return nil
}

func minutes(d time.Duration) int {
	return int(d.Round(time.Minute) / time.Minute)
}

// logTransport writes emails to the log. Meant for development only, the
// body contains the secret.
type logTransport struct{}

func (logTransport) send(_ context.Context, msg message) error {
	slog.Info("email_logged", "to", msg.to, "subject", msg.subject, "body", msg.body)
	return nil
}

type smtpTransport struct {
	cfg  *config.SMTPConfig
	opts []mail.Option
}

func newSMTPTransport(cfg *config.SMTPConfig) (*smtpTransport, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
	}

	// Configure TLS based on config and port
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	// Add authentication if credentials are provided
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	return &smtpTransport{cfg: cfg, opts: opts}, nil
}

func (t *smtpTransport) compose(msg message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if t.cfg.FromName != "" {
		if err := m.FromFormat(t.cfg.FromName, t.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := m.From(t.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := m.To(msg.to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	m.Subject(msg.subject)
	m.SetBodyString(mail.TypeTextPlain, msg.body)
	return m, nil
}

func (t *smtpTransport) send(ctx context.Context, msg message) error {
	m, err := t.compose(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(t.cfg.Host, t.opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}
