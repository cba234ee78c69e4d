package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, email *Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

func buildReport(codes ...int) *report.Report {
	run := &model.RunResult{SessionID: "s-1"}
	for i, code := range codes {
		run.Calls = append(run.Calls, &model.CallResult{ApiID: string(rune('a' + i)), StatusCode: code, DurationMs: 5})
	}
	return report.Build("Staging", []*model.RunResult{run}, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC))
}

func TestParseNotifyOn(t *testing.T) {
	for input, want := range map[string]NotifyOn{
		"":         NotifyAlways,
		"always":   NotifyAlways,
		"FAILURE":  NotifyFailure,
		"recovery": NotifyRecovery,
	} {
		got, err := ParseNotifyOn(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestEmailNotifier_Notify(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewEmailNotifier(mailer, NotifyAlways, nil)

	err := n.Notify(context.Background(), "nightly", []string{"qa@example.com", " ", "dev@example.com"}, buildReport(200, 404))
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	email := mailer.sent[0]
	assert.Equal(t, []string{"qa@example.com", "dev@example.com"}, email.To)
	assert.Equal(t, "[hitcron] PARTIAL Staging 1/2", email.Subject)
	assert.Contains(t, email.Text, "Success:     1/2 (50.0%)")
	assert.Contains(t, email.HTML, "<html")
}

func TestEmailNotifier_NoRecipients(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewEmailNotifier(mailer, NotifyAlways, nil)

	require.NoError(t, n.Notify(context.Background(), "nightly", nil, buildReport(200)))
	require.NoError(t, n.Notify(context.Background(), "nightly", []string{""}, buildReport(200)))
	assert.Empty(t, mailer.sent)
}

func TestEmailNotifier_MailerError(t *testing.T) {
	n := NewEmailNotifier(&fakeMailer{err: errors.New("relay down")}, NotifyAlways, nil)
	err := n.Notify(context.Background(), "nightly", []string{"qa@example.com"}, buildReport(200))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
}

func TestEmailNotifier_Policies(t *testing.T) {
	tests := []struct {
		name     string
		policy   NotifyOn
		statuses [][]int
		want     []bool
	}{
		{
			name:     "always",
			policy:   NotifyAlways,
			statuses: [][]int{{200}, {500}, {200}},
			want:     []bool{true, true, true},
		},
		{
			name:     "failure",
			policy:   NotifyFailure,
			statuses: [][]int{{200}, {200, 500}, {500}},
			want:     []bool{false, true, true},
		},
		{
			name:     "recovery",
			policy:   NotifyRecovery,
			statuses: [][]int{{200}, {500}, {200}, {200}},
			want:     []bool{false, true, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &fakeMailer{}
			n := NewEmailNotifier(mailer, tt.policy, nil)

			for i, codes := range tt.statuses {
				before := len(mailer.sent)
				require.NoError(t, n.Notify(context.Background(), "nightly", []string{"qa@example.com"}, buildReport(codes...)))
				assert.Equal(t, tt.want[i], len(mailer.sent) > before, "run %d", i)
			}
		})
	}
}

func TestNewSMTPMailer_Validation(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{From: "hitcron@example.com"})
	assert.Error(t, err)

	_, err = NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)

	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "hitcron@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestSMTPMailer_Send(t *testing.T) {
	var captured []*mail.Message
	m := newSMTPMailer(SMTPConfig{From: "hitcron@example.com", RatePerSecond: 100}, func(msgs ...*mail.Message) error {
		captured = append(captured, msgs...)
		return nil
	})

	err := m.Send(context.Background(), &Email{
		To:      []string{"qa@example.com"},
		Subject: "[hitcron] SUCCESS Staging 1/1",
		Text:    "all good",
		HTML:    "<p>all good</p>",
	})
	require.NoError(t, err)
	require.Len(t, captured, 1)

	msg := captured[0]
	assert.Equal(t, []string{"hitcron@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"qa@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"[hitcron] SUCCESS Staging 1/1"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "multipart/alternative")
	assert.Contains(t, buf.String(), "all good")
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := newSMTPMailer(SMTPConfig{From: "hitcron@example.com"}, func(msgs ...*mail.Message) error {
		return errors.New("535 auth failed")
	})

	err := m.Send(context.Background(), &Email{})
	assert.Error(t, err)

	err = m.Send(context.Background(), &Email{To: []string{"qa@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
}

func TestSMTPMailer_RespectsContext(t *testing.T) {
	m := newSMTPMailer(SMTPConfig{From: "hitcron@example.com", RatePerSecond: 0.001}, func(msgs ...*mail.Message) error {
		return nil
	})
	email := &Email{To: []string{"qa@example.com"}}

	require.NoError(t, m.Send(context.Background(), email))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, m.Send(ctx, email))
}
