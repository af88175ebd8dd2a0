// Package mailer provides the outbound sinks for revision reminders.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// TLS modes accepted by SMTPConfig.TLS.
const (
	TLSNone     = "none"
	TLSStartTLS = "starttls"
	TLSImplicit = "ssl"
)

// SMTPConfig describes the outbound mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      string
	FromAddr string
	FromName string
	Timeout  time.Duration
}

// SMTPSink delivers reminders over SMTP as multipart text and HTML messages.
// A new connection is dialed for every message.
type SMTPSink struct {
	cfg  SMTPConfig
	opts []mail.Option
}

// NewSMTPSink validates cfg and returns a sink ready to send.
func NewSMTPSink(cfg SMTPConfig) (*SMTPSink, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.FromAddr == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	switch cfg.TLS {
	case TLSImplicit:
		opts = append(opts, mail.WithSSL())
	case TLSStartTLS, "":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	case TLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		return nil, fmt.Errorf("unknown smtp tls mode %q", cfg.TLS)
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	// Fail fast on option errors rather than on the first send.
	if _, err := mail.NewClient(cfg.Host, opts...); err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &SMTPSink{cfg: cfg, opts: opts}, nil
}

// Send delivers one message to a single recipient.
func (s *SMTPSink) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	msg, err := s.buildMessage(to, subject, textBody, htmlBody)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSink) buildMessage(to, subject, textBody, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	var err error
	if s.cfg.FromName != "" {
		err = msg.FromFormat(s.cfg.FromName, s.cfg.FromAddr)
	} else {
		err = msg.From(s.cfg.FromAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	if htmlBody != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	}
	return msg, nil
}

// LogSink writes reminders to the log instead of sending them.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs through logger, or slog.Default when
// logger is nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, to, subject, textBody, _ string) error {
	s.logger.InfoContext(ctx, "reminder email not sent, no smtp host configured",
		"to", to,
		"subject", subject,
		"body", textBody,
	)
	return nil
}
