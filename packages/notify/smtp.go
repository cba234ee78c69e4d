package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/mail.v2"
)

const (
	// DefaultSMTPPort is the submission port
	DefaultSMTPPort = 587
	// DefaultRatePerSecond caps outgoing messages
	DefaultRatePerSecond = 1.0
	// DefaultSMTPTimeout bounds each SMTP read/write
	DefaultSMTPTimeout = 10 * time.Second
)

type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	RatePerSecond float64
}

// SMTPMailer sends email through an SMTP relay
type SMTPMailer struct {
	from    string
	limiter *rate.Limiter
	sender  func(msgs ...*mail.Message) error
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}

	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = DefaultSMTPTimeout

	return newSMTPMailer(cfg, dialer.DialAndSend), nil
}

func newSMTPMailer(cfg SMTPConfig, sender func(msgs ...*mail.Message) error) *SMTPMailer {
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = DefaultRatePerSecond
	}
	return &SMTPMailer{
		from:    cfg.From,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		sender:  sender,
	}
}

// Send waits for the rate limiter and delivers email as a multipart
// text/HTML message
func (m *SMTPMailer) Send(ctx context.Context, email *Email) error {
	if len(email.To) == 0 {
		return errors.New("email has no recipients")
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)
	msg.SetDateHeader("Date", time.Now())
	msg.SetBody("text/plain", email.Text)
	if email.HTML != "" {
		msg.AddAlternative("text/html", email.HTML)
	}

	if err := m.sender(msg); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}
