package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/eventleads/server/internal/config"
	"github.com/eventleads/server/internal/metrics"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// Service delivers transactional mail. Provider selection happens once at
// construction: Resend when an API key is configured, SMTP with STARTTLS
// when a host is configured, otherwise a disabled mode that logs the
// message instead of sending it.
type Service struct {
	config       config.EmailConfig
	resendClient *resend.Client
	logger       zerolog.Logger
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
		if cfg.ResendAPIKey == "" && cfg.SMTPHost == "" {
			return nil, fmt.Errorf("email enabled but neither RESEND_API_KEY nor SMTP_HOST is set")
		}
	}

	s := &Service{
		config: cfg,
		logger: logger.With().Str("component", "email").Logger(),
	}
	if cfg.ResendAPIKey != "" {
		s.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return s, nil
}

// Send delivers one message. Both bodies are optional individually; a
// multipart message is built when both are present.
func (s *Service) Send(ctx context.Context, to, subject, plainBody, htmlBody string) error {
	if err := validateEmailAddress(to); err != nil {
		metrics.EmailsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("invalid recipient email: %w", err)
	}

	if !s.config.Enabled {
		s.logger.Info().
			Str("to", to).
			Str("subject", subject).
			Str("body", plainBody).
			Msg("email service disabled, skipping delivery")
		metrics.EmailsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	var err error
	if s.resendClient != nil {
		err = s.sendViaResend(ctx, to, subject, plainBody, htmlBody)
	} else {
		err = s.sendViaSMTP(to, subject, plainBody, htmlBody)
	}
	if err != nil {
		metrics.EmailsTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.EmailsTotal.WithLabelValues("sent").Inc()
	return nil
}

// sendViaSMTP delivers over SMTP with a mandatory STARTTLS upgrade.
func (s *Service) sendViaSMTP(to, subject, plainBody, htmlBody string) error {
	msg := buildMessage(s.config.From, to, subject, plainBody, htmlBody)

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPassword, s.config.SMTPHost)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = client.Close() }()

	tlsConfig := &tls.Config{
		ServerName: s.config.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("failed to quit SMTP connection: %w", err)
	}

	s.logger.Info().Str("to", to).Str("subject", subject).Msg("email sent via SMTP")
	return nil
}

const multipartBoundary = "eventleads-alt-boundary"

// buildMessage assembles the RFC 5322 message: plain text only, HTML only,
// or multipart/alternative when both bodies are present.
func buildMessage(from, to, subject, plainBody, htmlBody string) []byte {
	var msg bytes.Buffer
	write := func(k, v string) {
		msg.WriteString(k)
		msg.WriteString(": ")
		msg.WriteString(v)
		msg.WriteString("\r\n")
	}

	write("From", from)
	write("To", to)
	write("Subject", subject)
	write("MIME-Version", "1.0")

	switch {
	case plainBody != "" && htmlBody != "":
		write("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", multipartBoundary))
		msg.WriteString("\r\n")

		msg.WriteString("--" + multipartBoundary + "\r\n")
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		msg.WriteString(plainBody)
		msg.WriteString("\r\n")

		msg.WriteString("--" + multipartBoundary + "\r\n")
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		msg.WriteString(htmlBody)
		msg.WriteString("\r\n")

		msg.WriteString("--" + multipartBoundary + "--\r\n")
	case htmlBody != "":
		write("Content-Type", "text/html; charset=UTF-8")
		msg.WriteString("\r\n")
		msg.WriteString(htmlBody)
	default:
		write("Content-Type", "text/plain; charset=UTF-8")
		msg.WriteString("\r\n")
		msg.WriteString(plainBody)
	}
	return msg.Bytes()
}

// validateEmailAddress checks format and rejects header injection attempts.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}
