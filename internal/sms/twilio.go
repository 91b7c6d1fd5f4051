package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrGateway = errors.New("sms gateway rejected message")

type TwilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// TwilioSender sends texts through the Twilio Messages REST resource.
type TwilioSender struct {
	http       *resty.Client
	accountSID string
	from       string
	log        *slog.Logger
}

func NewTwilioSender(baseURL, accountSID, authToken, from string, log *slog.Logger) *TwilioSender {
	if log == nil {
		log = slog.Default()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetBasicAuth(accountSID, authToken).
		SetHeader("Accept", "application/json")

	return &TwilioSender{
		http:       client,
		accountSID: accountSID,
		from:       from,
		log:        log,
	}
}

func (s *TwilioSender) Send(ctx context.Context, to string, body string) error {
	const op = "sms.twilio.send"

	var (
		result  twilioMessage
		failure TwilioError
	)
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("sid", s.accountSID).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.from,
			"Body": body,
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: %w: status %d: %s", op, ErrGateway, resp.StatusCode(), failure.Message)
	}

	s.log.Debug("sms accepted",
		slog.String("op", op),
		slog.String("sid", result.SID),
		slog.String("status", result.Status),
	)
	return nil
}
