// Package notify delivers run reports by email.
//
// EmailNotifier renders a report.Report into a multipart text and HTML
// message and hands it to a Mailer. SMTPMailer is the production Mailer;
// it throttles outgoing mail so a burst of schedules firing on the same tick
// does not trip the relay's rate limits.
package notify
