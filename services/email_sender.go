package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grumming/grumming-app-sub004/config"
	"gopkg.in/gomail.v2"
)

type Attachment struct {
	Filename string
	Content  []byte
}

type EmailMessage struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// NewMailer picks the provider named by EMAIL_PROVIDER. It returns nil when that provider lacks credentials.
func NewMailer(cfg config.EmailConfig) Mailer {
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTPUser == "" || cfg.SMTPPass == "" {
			return nil
		}
		return NewSMTPMailer(cfg)
	default:
		if cfg.ResendAPIKey == "" {
			return nil
		}
		return NewResendMailer(cfg)
	}
}

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	client *resty.Client
	from   string
}

func NewResendMailer(cfg config.EmailConfig) *ResendMailer {
	from := cfg.From
	if from == "" {
		from = "onboarding@resend.dev"
	}
	client := resty.New().
		SetBaseURL(cfg.ResendBaseURL).
		SetAuthToken(cfg.ResendAPIKey).
		SetTimeout(15 * time.Second)
	return &ResendMailer{client: client, from: from}
}

type resendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (m *ResendMailer) Send(ctx context.Context, msg EmailMessage) error {
	body := map[string]interface{}{
		"from":    m.from,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if len(msg.Attachments) > 0 {
		atts := make([]resendAttachment, 0, len(msg.Attachments))
		for _, a := range msg.Attachments {
			atts = append(atts, resendAttachment{Filename: a.Filename, Content: base64.StdEncoding.EncodeToString(a.Content)})
		}
		body["attachments"] = atts
	}

	var apiErr resendError
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("could not connect to email provider: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("resend API error: status %s: %s", resp.Status(), apiErr.Message)
	}
	return nil
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUser
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)
	for _, a := range msg.Attachments {
		content := a.Content
		gm.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(content))
			return err
		}))
	}

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
