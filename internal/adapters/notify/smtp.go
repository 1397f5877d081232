package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jordan-wright/email"
	"github.com/mikey/contact-guard/internal/config"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/utils"
	"go.uber.org/zap"
)

const (
	dialTimeout    = 10 * time.Second
	sessionTimeout = 30 * time.Second
)

// SendFunc delivers a composed message
type SendFunc func(ctx context.Context, from string, to []string, msg []byte) error

// SMTPNotifier mails accepted contact messages to the site owner
type SMTPNotifier struct {
	cfg           config.NotifyConfig
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	send          SendFunc
}

// NewSMTPNotifier creates a notifier that delivers through the configured SMTP server
func NewSMTPNotifier(cfg config.NotifyConfig, logger *zap.Logger, textProcessor *utils.TextProcessor) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.To) == "" {
		return nil, fmt.Errorf("notify.to is required when notifications are enabled")
	}
	if strings.TrimSpace(cfg.From) == "" {
		cfg.From = cfg.SMTPUser
	}

	n := &SMTPNotifier{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
	n.send = n.deliver
	return n, nil
}

// SetSendFunc replaces the delivery function, mainly for tests
func (n *SMTPNotifier) SetSendFunc(send SendFunc) {
	n.send = send
}

// Notify composes and sends the owner notification. Spam is tagged with
// headers and a subject prefix, or dropped entirely when block_spam is set.
func (n *SMTPNotifier) Notify(ctx context.Context, record *core.SubmissionRecord, verdict *core.ScreeningVerdict) error {
	if verdict != nil && verdict.IsSpam && n.cfg.BlockSpam {
		n.logger.Info("Notification suppressed for spam",
			zap.String("id", record.ID),
			zap.Float64("score", verdict.Score))
		return nil
	}

	e := n.compose(record, verdict)
	msg, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("failed to render notification: %w", err)
	}

	if err := n.send(ctx, n.cfg.From, e.To, msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.Debug("Notification sent", zap.String("id", record.ID), zap.Strings("to", e.To))
	return nil
}

func (n *SMTPNotifier) compose(record *core.SubmissionRecord, verdict *core.ScreeningVerdict) *email.Email {
	name := n.textProcessor.HeaderSafe(record.Name, 100)

	subject := strings.TrimSpace(n.cfg.SubjectPrefix + " New message from " + name)
	if verdict != nil && verdict.IsSpam {
		subject = n.cfg.SpamSubjectPrefix + subject
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s <%s>\n", name, record.Email)
	if record.IPAddress != "" {
		fmt.Fprintf(&body, "IP: %s\n", record.IPAddress)
	}
	if record.UserAgent != "" {
		fmt.Fprintf(&body, "User-Agent: %s\n", n.textProcessor.HeaderSafe(record.UserAgent, 200))
	}
	fmt.Fprintf(&body, "Received: %s\n", record.CreatedAt.Format(time.RFC1123Z))
	fmt.Fprintf(&body, "ID: %s\n\n", record.ID)
	body.WriteString(n.textProcessor.SanitizeUTF8(record.Message))
	body.WriteString("\n")

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{n.cfg.To}
	e.ReplyTo = []string{(&mail.Address{Name: name, Address: record.Email}).String()}
	e.Subject = subject
	e.Text = []byte(body.String())

	if verdict != nil {
		status := "No"
		if verdict.IsSpam {
			status = "Yes"
		}
		e.Headers.Set(n.cfg.SpamHeader, status)
		e.Headers.Set(n.cfg.ScoreHeader, strconv.FormatFloat(verdict.Score, 'f', 4, 64))
		if verdict.Explanation != "" {
			e.Headers.Set(n.cfg.ReasonHeader, n.textProcessor.HeaderSafe(verdict.Explanation, 200))
		}
	}

	return e
}

// deliver sends msg over a fresh SMTP session using go-smtp
func (n *SMTPNotifier) deliver(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(n.cfg.SMTPHost, strconv.Itoa(n.cfg.SMTPPort))
	tlsConfig := &tls.Config{ServerName: n.cfg.SMTPHost}

	dialer := &net.Dialer{Timeout: dialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if n.cfg.SMTPTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	deadline := time.Now().Add(sessionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if n.cfg.SMTPStartTLS && !n.cfg.SMTPTLS {
		if err := c.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if n.cfg.SMTPUser != "" {
		if err := c.Auth(sasl.NewPlainClient("", n.cfg.SMTPUser, n.cfg.SMTPPass)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	for _, recipient := range to {
		if err := c.Rcpt(recipient, nil); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", recipient, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message has already been accepted
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// LogNotifier only logs accepted messages; used when mail delivery is disabled
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the accepted message
func (n *LogNotifier) Notify(ctx context.Context, record *core.SubmissionRecord, verdict *core.ScreeningVerdict) error {
	fields := []zap.Field{
		zap.String("id", record.ID),
		zap.String("email", record.Email),
		zap.Int("message_bytes", len(record.Message)),
	}
	if verdict != nil {
		fields = append(fields, zap.Bool("spam", verdict.IsSpam), zap.Float64("score", verdict.Score))
	}
	n.logger.Info("New contact message", fields...)
	return nil
}
