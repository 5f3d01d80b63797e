package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grumming/grumming-app-sub004/config"
)

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	client *resty.Client
	sid    string
	from   string
}

// NewTwilioSender returns nil when Twilio is not configured.
func NewTwilioSender(cfg config.TwilioConfig) *TwilioSender {
	if !cfg.Configured() {
		return nil
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetTimeout(15 * time.Second)
	return &TwilioSender{client: client, sid: cfg.AccountSID, from: cfg.FromNumber}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (t *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	var apiErr twilioError
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("sid", t.sid).
		SetFormData(map[string]string{
			"To":   to,
			"From": t.from,
			"Body": body,
		}).
		SetError(&apiErr).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return fmt.Errorf("could not connect to SMS provider: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("twilio API error: status %s (code %d): %s", resp.Status(), apiErr.Code, apiErr.Message)
	}
	return nil
}
