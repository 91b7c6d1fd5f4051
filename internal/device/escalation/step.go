package escalation

import (
	"net/url"
	"strings"
	"time"

	"github.com/immxrtalbeast/safewatch/internal/domain"
)

type Step string

const (
	StepLiveAlert     Step = "live_alert"
	StepDirectMessage Step = "direct_message"
	StepMessagingApp  Step = "messaging_app"
	StepCall          Step = "call"
)

type State string

const (
	StatePending State = "pending"
	StateSending State = "sending"
	StateSent    State = "sent"
	StateFailed  State = "failed"
)

func (s State) terminal() bool {
	return s == StateSent || s == StateFailed
}

// Intent is a request to hand a URI to the platform: an SMS composer, a
// messaging app deep link or the dialer.
type Intent struct {
	Channel Step
	URI     string
}

type StepStatus struct {
	Step      Step
	State     State
	DueAt     time.Time
	FiredAt   time.Time
	Remaining time.Duration
	Err       error
}

const messageTemplate = "SOS! I need help. My location: "

func Message(point domain.Point) string {
	return messageTemplate + point.MapsLink()
}

func SMSIntent(contact, body string) Intent {
	return Intent{Channel: StepDirectMessage, URI: "sms:" + contact + "?body=" + escape(body)}
}

func MessagingAppIntent(contact, prefix, body string) Intent {
	to := domain.InternationalContact(contact, prefix)
	return Intent{Channel: StepMessagingApp, URI: "https://wa.me/" + to + "?text=" + escape(body)}
}

func CallIntent(contact string) Intent {
	return Intent{Channel: StepCall, URI: "tel:" + contact}
}

// escape encodes s as a URI component, spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
