package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/report"
	"github.com/sirupsen/logrus"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when a run is not SUCCESS
	NotifyFailure NotifyOn = "failure"
	// NotifyRecovery sends notifications on failure and on the first success after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn converts a config value into a policy
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch NotifyOn(strings.ToLower(strings.TrimSpace(s))) {
	case "", NotifyAlways:
		return NotifyAlways, nil
	case NotifyFailure:
		return NotifyFailure, nil
	case NotifyRecovery:
		return NotifyRecovery, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (want always, failure or recovery)", s)
	}
}

// Email is a rendered message ready for delivery
type Email struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers an email
type Mailer interface {
	Send(ctx context.Context, email *Email) error
}

// EmailNotifier sends run reports to the addresses configured on a schedule
type EmailNotifier struct {
	mailer   Mailer
	notifyOn NotifyOn
	log      logrus.FieldLogger

	mu        sync.Mutex
	lastState map[string]bool // schedule id -> last run succeeded
}

func NewEmailNotifier(mailer Mailer, notifyOn NotifyOn, log logrus.FieldLogger) *EmailNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if notifyOn == "" {
		notifyOn = NotifyAlways
	}
	return &EmailNotifier{
		mailer:    mailer,
		notifyOn:  notifyOn,
		log:       log.WithField("component", "notify"),
		lastState: make(map[string]bool),
	}
}

// shouldNotify applies the policy and records the outcome for key
func (n *EmailNotifier) shouldNotify(key string, status model.RunStatus) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	success := status == model.StatusSuccess
	previous, seen := n.lastState[key]
	n.lastState[key] = success

	switch n.notifyOn {
	case NotifyFailure:
		return !success
	case NotifyRecovery:
		return !success || (seen && !previous)
	default:
		return true
	}
}

// Notify emails r to every address in to. key identifies the schedule for
// recovery tracking. An empty recipient list is a no-op.
func (n *EmailNotifier) Notify(ctx context.Context, key string, to []string, r *report.Report) error {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	if n.mailer == nil {
		return errors.New("no mailer configured")
	}

	if !n.shouldNotify(key, r.Status) {
		n.log.WithField("schedule_id", key).Debugf("skipping %s notification (policy %s)", r.Status, n.notifyOn)
		return nil
	}

	html, err := r.HTML()
	if err != nil {
		return err
	}

	email := &Email{
		To:      recipients,
		Subject: r.Subject(),
		Text:    r.Text(),
		HTML:    html,
	}
	if err := n.mailer.Send(ctx, email); err != nil {
		return fmt.Errorf("sending report: %w", err)
	}

	n.log.WithFields(logrus.Fields{
		"schedule_id": key,
		"recipients":  len(recipients),
		"status":      r.Status,
	}).Info("report sent")
	return nil
}
