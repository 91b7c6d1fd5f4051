package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/internal/metrics"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
)

const (
	MethodSMS     = "SMS"
	MethodWebOnly = "WEB_ONLY"

	smsFailedMessage = "SMS failed but web alert sent"
)

type AlertRequest struct {
	Code    string  `json:"code"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Contact string  `json:"contact"`
}

type AlertResult struct {
	Success bool   `json:"success"`
	Method  string `json:"method,omitempty"`
	Message string `json:"message,omitempty"`
}

// SMSSender is the external SMS gateway.
type SMSSender interface {
	Send(ctx context.Context, to string, body string) error
}

type AlertPublisher interface {
	PublishAlert(ctx context.Context, event domain.PresenceEvent) error
}

type AlertService struct {
	relay         AlertPublisher
	directory     CodeResolver
	sms           SMSSender
	policy        LinkPolicy
	countryPrefix string
	log           *slog.Logger
}

// NewAlertService builds the alert fan-out. A nil sms sender degrades every
// alert to WEB_ONLY.
func NewAlertService(relay AlertPublisher, directory CodeResolver, sms SMSSender, policy LinkPolicy, countryPrefix string, log *slog.Logger) *AlertService {
	if log == nil {
		log = slog.Default()
	}
	return &AlertService{
		relay:         relay,
		directory:     directory,
		sms:           sms,
		policy:        policy,
		countryPrefix: countryPrefix,
		log:           log,
	}
}

// TriggerAlert emits sos_alert into the room for req.Code exactly once and
// then tries the SMS leg. A failed SMS does not fail the call; it is
// reported through AlertResult.
func (s *AlertService) TriggerAlert(ctx context.Context, identity domain.Identity, req AlertRequest) (*AlertResult, error) {
	const op = "service.alert.trigger"

	code := domain.NormalizeCode(req.Code)
	if code == "" && identity.IsPrincipal() {
		code = identity.Principal.Code
	}
	log := s.log.With(slog.String("op", op), slog.String("code", code))

	event := domain.PresenceEvent{
		Code:      code,
		Lat:       req.Lat,
		Lng:       req.Lng,
		Status:    domain.StatusSosActive,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := s.policy.CanPublish(identity, code); err != nil {
		log.Warn("alert rejected", sl.Err(err))
		return nil, err
	}

	principal, err := s.directory.ResolveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.relay.PublishAlert(ctx, event); err != nil {
		log.Error("failed to emit room alert", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("room alert emitted")

	if s.sms == nil {
		log.Info("sms gateway not configured, web alert only")
		metrics.Alerts.WithLabelValues(MethodWebOnly).Inc()
		return &AlertResult{Success: true, Method: MethodWebOnly}, nil
	}

	contact := req.Contact
	if contact == "" {
		contact = principal.Contact
	}
	to := domain.InternationalContact(contact, s.countryPrefix)
	body := fmt.Sprintf("SOS ALERT! User %s needs help. Location: %s", code, event.Point().MapsLink())

	if to == "" {
		log.Error("no contact to text")
		metrics.Alerts.WithLabelValues("SMS_FAILED").Inc()
		return &AlertResult{Success: false, Message: smsFailedMessage}, nil
	}
	if err := s.sms.Send(ctx, to, body); err != nil {
		log.Error("sms send failed", slog.String("to", to), sl.Err(err))
		metrics.Alerts.WithLabelValues("SMS_FAILED").Inc()
		return &AlertResult{Success: false, Message: smsFailedMessage}, nil
	}

	log.Info("sms alert sent", slog.String("to", to))
	metrics.Alerts.WithLabelValues(MethodSMS).Inc()
	return &AlertResult{Success: true, Method: MethodSMS}, nil
}
