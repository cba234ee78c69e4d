// Package report summarizes one or more runs for notification emails.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/core/runner"
)

// maxLatencyMs bounds the latency histogram; longer calls are clamped
const maxLatencyMs = 10 * 60 * 1000

//go:embed report.html.tmpl
var htmlSource string

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"statusClass": statusClass,
}).Parse(htmlSource))

type Call struct {
	ApiID      string `json:"apiId"`
	SessionID  string `json:"sessionId,omitempty"`
	Passed     bool   `json:"passed"`
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

type Report struct {
	Environment string          `json:"environment"`
	RunAt       time.Time       `json:"runAt"`
	SessionIDs  []string        `json:"sessionIds"`
	Success     int             `json:"success"`
	Total       int             `json:"total"`
	SuccessRate float64         `json:"successRate"`
	Status      model.RunStatus `json:"status"`
	DurationMs  int64           `json:"durationMs"`
	P50Ms       int64           `json:"p50Ms"`
	P95Ms       int64           `json:"p95Ms"`
	P99Ms       int64           `json:"p99Ms"`
	Calls       []Call          `json:"calls"`
}

// Build concatenates the calls of runs into one report. The overall status
// uses the same aggregation as a single batch.
func Build(environment string, runs []*model.RunResult, at time.Time) *Report {
	r := &Report{
		Environment: environment,
		RunAt:       at,
		SessionIDs:  make([]string, 0, len(runs)),
		Calls:       make([]Call, 0),
	}

	histogram := hdrhistogram.New(1, maxLatencyMs, 3)
	var all []*model.CallResult

	for _, run := range runs {
		if run == nil {
			continue
		}
		if run.SessionID != "" {
			r.SessionIDs = append(r.SessionIDs, run.SessionID)
		}
		r.DurationMs += run.DurationMs

		for _, c := range run.Calls {
			all = append(all, c)
			passed := !c.Failed()
			if passed {
				r.Success++
			}
			r.Calls = append(r.Calls, Call{
				ApiID:      c.ApiID,
				SessionID:  run.SessionID,
				Passed:     passed,
				StatusCode: c.StatusCode,
				Error:      c.ErrorMessage(),
				DurationMs: c.DurationMs,
			})
			_ = histogram.RecordValue(clamp(c.DurationMs))
		}
	}

	r.Total = len(all)
	r.Status = runner.AggregateStatus(all)
	if r.Total > 0 {
		r.SuccessRate = float64(r.Success) / float64(r.Total) * 100
		r.P50Ms = histogram.ValueAtQuantile(50)
		r.P95Ms = histogram.ValueAtQuantile(95)
		r.P99Ms = histogram.ValueAtQuantile(99)
	}

	return r
}

func clamp(ms int64) int64 {
	if ms < 1 {
		return 1
	}
	if ms > maxLatencyMs {
		return maxLatencyMs
	}
	return ms
}

// Subject is the email subject line
func (r *Report) Subject() string {
	env := r.Environment
	if env == "" {
		env = "unknown environment"
	}
	return fmt.Sprintf("[hitcron] %s %s %d/%d", r.Status, env, r.Success, r.Total)
}

// Text renders the plain text body
func (r *Report) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Environment: %s\n", r.Environment)
	fmt.Fprintf(&b, "Run at:      %s\n", r.RunAt.Format(time.RFC3339))
	if len(r.SessionIDs) > 0 {
		fmt.Fprintf(&b, "Sessions:    %s\n", strings.Join(r.SessionIDs, ", "))
	}
	fmt.Fprintf(&b, "Status:      %s\n", r.Status)
	fmt.Fprintf(&b, "Success:     %d/%d (%.1f%%)\n", r.Success, r.Total, r.SuccessRate)
	fmt.Fprintf(&b, "Duration:    %dms (p50 %dms, p95 %dms, p99 %dms)\n", r.DurationMs, r.P50Ms, r.P95Ms, r.P99Ms)
	b.WriteString("\n")

	for _, c := range r.Calls {
		mark := "✓"
		if !c.Passed {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %s %s  %d  %dms", mark, c.ApiID, c.StatusCode, c.DurationMs)
		if c.Error != "" {
			fmt.Fprintf(&b, "  %s", c.Error)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// HTML renders the HTML body
func (r *Report) HTML() (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

func statusClass(status model.RunStatus) string {
	switch status {
	case model.StatusSuccess:
		return "success"
	case model.StatusPartial:
		return "partial"
	default:
		return "failed"
	}
}
