package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/aximilate/ctrl/internal/common"
	"github.com/aximilate/ctrl/internal/server/config"
)

// SMTPSender sends codes through an SMTP relay using implicit TLS on the
// configured port (the usual 465 setup).
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

func (s *SMTPSender) SendCode(ctx context.Context, to, code, purpose string) error {
	if s.host == "" {
		return fmt.Errorf("smtp host not configured: %w", common.ErrUpstreamUnavailable)
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	dialer := &net.Dialer{}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", common.ErrUpstreamUnavailable)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", common.ErrUpstreamUnavailable)
	}
	defer client.Close()

	if s.user != "" {
		auth := smtp.PlainAuth("", s.user, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", common.ErrUpstreamUnavailable)
		}
	}

	if err := client.Mail(fromAddress(s.from)); err != nil {
		return fmt.Errorf("smtp mail from: %w", common.ErrUpstreamUnavailable)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", common.ErrUpstreamUnavailable)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", common.ErrUpstreamUnavailable)
	}
	msg := buildMessage(s.from, to, code, purpose)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", common.ErrUpstreamUnavailable)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", common.ErrUpstreamUnavailable)
	}
	return client.Quit()
}

func buildMessage(from, to, code, purpose string) string {
	subject := "Your verification code"
	switch purpose {
	case PurposeRegister:
		subject = "Your registration code"
	case PurposeLogin:
		subject = "Your login code"
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Your verification code is: " + code + "\r\n")
	b.WriteString("It expires in 10 minutes. If you did not request it, ignore this message.\r\n")
	return b.String()
}

// fromAddress extracts the bare address from a "Name <addr>" header value.
func fromAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}
