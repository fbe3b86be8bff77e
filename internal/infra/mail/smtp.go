package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	gomail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/arklim/petclub-iam/internal/core/port"
	"github.com/arklim/petclub-iam/internal/infra/config"
	"github.com/arklim/petclub-iam/internal/infra/logger"
)

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	log    *zap.Logger
}

// NewSMTPMailer builds a mailer from cfg. TLSMode is one of "starttls", "ssl" or "none".
func NewSMTPMailer(cfg config.MailSettings, log *zap.Logger) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 10 * time.Second
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	switch cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = gomail.NoStartTLS
	default:
		d.StartTLSPolicy = gomail.MandatoryStartTLS
	}

	from := cfg.From
	if cfg.FromName != "" {
		from = gomail.NewMessage().FormatAddress(cfg.From, cfg.FromName)
	}

	return &SMTPMailer{dialer: d, from: from, log: log.With(zap.String("component", "smtp_mailer"))}
}

func (m *SMTPMailer) Send(ctx context.Context, msg port.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)

	if msg.TextBody != "" {
		message.SetBody("text/plain", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		if msg.TextBody == "" {
			message.SetBody("text/html", msg.HTMLBody)
		} else {
			message.AddAlternative("text/html", msg.HTMLBody)
		}
	}

	if err := m.dialer.DialAndSend(message); err != nil {
		m.log.Error("smtp send failed", zap.String("to", logger.MaskEmail(msg.To)), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}

	m.log.Info("email sent", zap.String("to", logger.MaskEmail(msg.To)), zap.String("subject", msg.Subject))
	return nil
}

// LoggingMailer records messages instead of delivering them. Used when no SMTP host is configured.
type LoggingMailer struct {
	log *zap.Logger
}

func NewLoggingMailer(log *zap.Logger) *LoggingMailer {
	return &LoggingMailer{log: log.With(zap.String("component", "logging_mailer"))}
}

func (m *LoggingMailer) Send(_ context.Context, msg port.MailMessage) error {
	m.log.Info("email delivery skipped",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.Int("text_bytes", len(msg.TextBody)),
	)
	return nil
}

// NewMailer picks SMTP when a host is configured and the logging mailer otherwise.
func NewMailer(cfg config.MailSettings, log *zap.Logger) port.Mailer {
	if cfg.Host == "" {
		return NewLoggingMailer(log)
	}
	return NewSMTPMailer(cfg, log)
}
