package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/course-identity-service/internal/observability"
)

//go:embed mailtemplates/*.html
var mailTemplateFS embed.FS

const (
	smtpSendTimeout = 10 * time.Second
	// smtpsPort speaks TLS from the first byte instead of upgrading.
	smtpsPort = 465
)

// Message is a rendered-on-send mail addressed to a single recipient.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var ErrUnknownTemplate = errors.New("unknown mail template")

// MailRenderer resolves named templates from the embedded mailtemplates directory.
type MailRenderer struct {
	templates *template.Template
}

func NewMailRenderer() (*MailRenderer, error) {
	tmpl, err := template.ParseFS(mailTemplateFS, "mailtemplates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &MailRenderer{templates: tmpl}, nil
}

func (r *MailRenderer) Render(name string, data map[string]any) (string, error) {
	file := name
	if !strings.HasSuffix(file, ".html") {
		file += ".html"
	}
	t := r.templates.Lookup(file)
	if t == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	renderer *MailRenderer
	timeout  time.Duration

	implicitTLS bool
	tlsConfig   *tls.Config
}

func NewSMTPMailer(host string, port int, username, password, from string, renderer *MailRenderer) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		renderer: renderer,
		timeout:  smtpSendTimeout,

		implicitTLS: port == smtpsPort,
		tlsConfig:   &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	body, err := m.renderer.Render(msg.Template, msg.Data)
	if err != nil {
		observability.RecordMailDelivery(ctx, msg.Template, "render_error")
		return err
	}
	if err := m.deliver(ctx, msg.To, buildMIMEMessage(m.from, msg.To, msg.Subject, body)); err != nil {
		observability.RecordMailDelivery(ctx, msg.Template, "error")
		return fmt.Errorf("send %s mail: %w", msg.Template, err)
	}
	observability.RecordMailDelivery(ctx, msg.Template, "sent")
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, to string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	var (
		conn net.Conn
		err  error
	)
	if m.implicitTLS {
		d := tls.Dialer{Config: m.tlsConfig.Clone()}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if _, secure := conn.(*tls.Conn); !secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(m.tlsConfig.Clone()); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if m.username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func buildMIMEMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// DevMailer logs the rendered message instead of delivering it.
type DevMailer struct {
	logger   *slog.Logger
	renderer *MailRenderer
}

func NewDevMailer(logger *slog.Logger, renderer *MailRenderer) *DevMailer {
	return &DevMailer{logger: logger, renderer: renderer}
}

func (m *DevMailer) Send(ctx context.Context, msg Message) error {
	if _, err := m.renderer.Render(msg.Template, msg.Data); err != nil {
		observability.RecordMailDelivery(ctx, msg.Template, "render_error")
		return err
	}
	m.logger.InfoContext(ctx, "mail delivery skipped (SMTP_HOST not configured)",
		"component", "mailer",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
		"code", msg.Data["code"],
	)
	observability.RecordMailDelivery(ctx, msg.Template, "logged")
	return nil
}
