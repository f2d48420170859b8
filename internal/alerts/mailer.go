package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/meujardineiro/backend/internal/config"
)

// Mailer delivers one rendered email.
type Mailer interface {
	Send(ctx context.Context, env EmailEnvelope) error
}

// NewMailer picks the transport named by cfg.Provider.
func NewMailer(cfg config.MailConfig, log *zap.Logger) (Mailer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPPort == "" || cfg.SMTPUsername == "" || cfg.SMTPPassword == "" || cfg.From == "" {
			return nil, fmt.Errorf("smtp not configured: set MAIL_SMTP_HOST, MAIL_SMTP_PORT, MAIL_SMTP_USERNAME, MAIL_SMTP_PASSWORD, MAIL_FROM")
		}
		return &SMTPMailer{cfg: cfg}, nil
	case "plunk":
		return NewPlunkMailer(cfg)
	case "", "log":
		return LogMailer{log: log}, nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}

// LogMailer only logs. Used in development.
type LogMailer struct {
	log *zap.Logger
}

func (m LogMailer) Send(_ context.Context, env EmailEnvelope) error {
	m.log.Info("email", zap.String("to", env.To), zap.String("subject", env.Subject))
	return nil
}

// SMTPMailer sends plain text email over implicit TLS.
type SMTPMailer struct {
	cfg config.MailConfig
}

func (m *SMTPMailer) message(env EmailEnvelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", env.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", env.Subject)
	if m.cfg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", m.cfg.ReplyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	contentType := "text/plain"
	lb := strings.ToLower(env.Body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") {
		contentType = "text/html"
	}
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("\r\n" + env.Body + "\r\n")
	return b.String()
}

func (m *SMTPMailer) Send(ctx context.Context, env EmailEnvelope) error {
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: m.cfg.SMTPHost}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(env.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(m.message(env))); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}
