package email

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/itchan-dev/usuarios/internal/config"
	"github.com/itchan-dev/usuarios/internal/logger"
	"github.com/yuin/goldmark"
)

type Email struct {
	config  config.Email
	account config.EmailAccount
	auth    smtp.Auth
	md      goldmark.Markdown
}

func New(cfg config.Email, account config.EmailAccount) *Email {
	return &Email{
		config:  cfg,
		account: account,
		auth:    smtp.PlainAuth("", account.Username, account.Password, cfg.SMTPServer),
		md:      goldmark.New(),
	}
}

// Send delivers a message whose body is Markdown. Recipients get the text as
// written plus an HTML rendering of it. ctx bounds the whole SMTP exchange.
func (e *Email) Send(ctx context.Context, recipientEmail, subject, body string) error {
	msg, err := e.buildMessage(recipientEmail, subject, body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	address := net.JoinHostPort(e.config.SMTPServer, fmt.Sprint(e.config.SMTPPort))
	conn, err := e.dial(ctx, address)
	if err != nil {
		logger.Log.Error("failed to connect to SMTP server", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.config.SMTPServer)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	if e.config.SMTPPort != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: e.config.SMTPServer}); err != nil {
				logger.Log.Error("failed to start TLS", "error", err)
				return err
			}
		}
	}

	return e.sendViaClient(client, recipientEmail, msg)
}

func (e *Email) timeout() time.Duration {
	timeout := time.Duration(e.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

// Port 465 = implicit TLS, anything else starts plain and upgrades.
func (e *Email) dial(ctx context.Context, address string) (net.Conn, error) {
	if e.config.SMTPPort == 465 {
		dialer := &tls.Dialer{Config: &tls.Config{ServerName: e.config.SMTPServer}}
		return dialer.DialContext(ctx, "tcp", address)
	}
	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", address)
}

func (e *Email) sendViaClient(client *smtp.Client, recipientEmail string, msg []byte) error {
	if e.account.Username != "" {
		if err := client.Auth(e.auth); err != nil {
			logger.Log.Error("SMTP authentication failed", "error", err)
			return err
		}
	}

	if err := client.Mail(e.account.Username); err != nil {
		logger.Log.Error("failed to set sender", "error", err)
		return err
	}

	if err := client.Rcpt(recipientEmail); err != nil {
		logger.Log.Error("failed to set recipient", "recipient", recipientEmail, "error", err)
		return err
	}

	w, err := client.Data()
	if err != nil {
		logger.Log.Error("failed to get data writer", "error", err)
		return err
	}
	if _, err = w.Write(msg); err != nil {
		logger.Log.Error("failed to write message", "error", err)
		return err
	}
	if err = w.Close(); err != nil {
		logger.Log.Error("failed to close data writer", "error", err)
		return err
	}

	// The server answered 250 to DATA: the message is queued. A failed QUIT
	// must not turn a delivered message into an error.
	if err := client.Quit(); err != nil {
		logger.Log.Warn("SMTP QUIT failed after message was accepted", "recipient", recipientEmail, "error", err)
	}
	return nil
}

func (e *Email) senderDomain() string {
	if at := strings.LastIndex(e.account.Username, "@"); at >= 0 {
		return e.account.Username[at+1:]
	}
	return "localhost"
}

func generateMessageID(domain string) string {
	buf := make([]byte, 12)
	rand.Read(buf)
	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixNano(), hex.EncodeToString(buf), domain)
}

func (e *Email) buildMessage(recipient, subject, body string) ([]byte, error) {
	var htmlBody bytes.Buffer
	if err := e.md.Convert([]byte(body), &htmlBody); err != nil {
		return nil, fmt.Errorf("failed to render email body: %w", err)
	}

	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)
	if err := writePart(mw, "text/plain; charset=\"utf-8\"", []byte(body)); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html; charset=\"utf-8\"", htmlBody.Bytes()); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "Message-ID: %s\r\n", generateMessageID(e.senderDomain()))
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", e.config.SenderName), e.account.Username)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(parts.Bytes())
	return msg.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType string, content []byte) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", contentType)
	header.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(pw)
	if _, err := qp.Write(content); err != nil {
		return err
	}
	return qp.Close()
}
