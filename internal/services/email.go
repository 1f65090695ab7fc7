package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/huangang/brandsentry/internal/config"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/pkg/logger"
)

// EmailSender delivers one message to one address.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers alert emails over SMTP. With SMTP disabled it drops
// messages after logging them.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if !s.cfg.Enabled || s.cfg.Host == "" {
		logger.Debug().Str("to", to).Str("subject", subject).Msg("smtp disabled, email dropped")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	var message strings.Builder
	fmt.Fprintf(&message, "From: %s\r\n", headerValue(from))
	fmt.Fprintf(&message, "To: %s\r\n", headerValue(to))
	fmt.Fprintf(&message, "Subject: %s\r\n", headerValue(subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var err error
	if s.cfg.UseTLS {
		err = s.sendTLS(addr, auth, from, to, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, []string{to}, []byte(message.String()))
	}
	if err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	logger.Info().Str("to", to).Msg("alert email sent")
	return nil
}

func (s *SMTPSender) sendTLS(addr string, auth smtp.Auth, from, to, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

var headerBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// headerValue keeps caller text from starting a new header line.
func headerValue(v string) string {
	return headerBreaks.Replace(v)
}

// buildAlertEmail renders the minimal HTML body of a brand alert.
func buildAlertEmail(brand *models.Brand, n *models.Notification) string {
	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	fmt.Fprintf(&sb, "<h2>%s</h2>", html.EscapeString(n.Title))
	fmt.Fprintf(&sb, "<p><strong>Brand:</strong> %s</p>", html.EscapeString(brand.Name))
	fmt.Fprintf(&sb, "<p><strong>Event:</strong> %s</p>", html.EscapeString(n.Type))
	if n.Message != "" {
		fmt.Fprintf(&sb, "<div style=\"background: #f9f9f9; padding: 16px; border-radius: 4px; white-space: pre-wrap;\">%s</div>", html.EscapeString(n.Message))
	}
	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">Sent by BrandSentry alerts</p>")
	sb.WriteString("</body></html>")
	return sb.String()
}
