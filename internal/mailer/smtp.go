package mailer

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transport delivers a composed notification. Fire-and-forget from the
// pipeline's perspective; delivery guarantees belong to the implementation.
type Transport interface {
	Send(recipients []string, subject, body string) error
}

// SMTPConfig holds the settings for the SMTP smarthost.
type SMTPConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	From  string `yaml:"from"`
	Hello string `yaml:"hello"`
}

// SMTPTransport sends notifications through a plain SMTP smarthost.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport creates a transport for the given smarthost.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	if cfg.Hello == "" {
		cfg.Hello = "localhost"
	}
	return &SMTPTransport{cfg: cfg}
}

// Send delivers one message to all recipients in a single SMTP transaction.
func (t *SMTPTransport) Send(recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	addr := net.JoinHostPort(t.cfg.Host, fmt.Sprintf("%d", t.cfg.Port))
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial smarthost %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Hello(t.cfg.Hello); err != nil {
		return fmt.Errorf("helo: %w", err)
	}
	if err := client.Mail(t.cfg.From); err != nil {
		return fmt.Errorf("mail from %s: %w", t.cfg.From, err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(buildMessage(t.cfg.From, recipients, subject, body, time.Now())); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return client.Quit()
}

// buildMessage renders the RFC 5322 message with CRLF line endings.
func buildMessage(from string, recipients []string, subject, body string, now time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&sb, "Message-ID: <%s@quotamail>\r\n", uuid.New().String())
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

var _ Transport = (*SMTPTransport)(nil)
