package report

import (
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRuns() []*model.RunResult {
	return []*model.RunResult{
		{
			SessionID:  "s-1",
			DurationMs: 30,
			Calls: []*model.CallResult{
				{ApiID: "login", StatusCode: 200, DurationMs: 10},
				{ApiID: "me", StatusCode: 200, DurationMs: 20},
			},
		},
		{
			SessionID:  "s-2",
			DurationMs: 100,
			Calls: []*model.CallResult{
				{ApiID: "orders", StatusCode: 500, DurationMs: 100, Error: model.StringPtr("Internal Server Error")},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	at := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	r := Build("Staging", sampleRuns(), at)

	assert.Equal(t, "Staging", r.Environment)
	assert.Equal(t, at, r.RunAt)
	assert.Equal(t, []string{"s-1", "s-2"}, r.SessionIDs)
	assert.Equal(t, 2, r.Success)
	assert.Equal(t, 3, r.Total)
	assert.InDelta(t, 66.67, r.SuccessRate, 0.01)
	assert.Equal(t, model.StatusPartial, r.Status)
	assert.Equal(t, int64(130), r.DurationMs)
	require.Len(t, r.Calls, 3)
	assert.False(t, r.Calls[2].Passed)
	assert.Equal(t, "s-2", r.Calls[2].SessionID)
	assert.Equal(t, "Internal Server Error", r.Calls[2].Error)

	assert.Equal(t, int64(20), r.P50Ms)
	assert.InDelta(t, 100, r.P99Ms, 1)
}

func TestBuild_Empty(t *testing.T) {
	r := Build("Staging", nil, time.Now())
	assert.Equal(t, 0, r.Total)
	assert.Equal(t, model.StatusFailed, r.Status)
	assert.Zero(t, r.SuccessRate)
	assert.Zero(t, r.P50Ms)
}

func TestSubject(t *testing.T) {
	r := Build("Staging", sampleRuns(), time.Now())
	assert.Equal(t, "[hitcron] PARTIAL Staging 2/3", r.Subject())
}

func TestText(t *testing.T) {
	r := Build("Staging", sampleRuns(), time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC))
	text := r.Text()

	assert.Contains(t, text, "Environment: Staging")
	assert.Contains(t, text, "2026-03-01T03:00:00Z")
	assert.Contains(t, text, "Sessions:    s-1, s-2")
	assert.Contains(t, text, "Success:     2/3 (66.7%)")
	assert.Contains(t, text, "✓ login  200  10ms")
	assert.Contains(t, text, "✗ orders  500  100ms  Internal Server Error")
}

func TestHTML(t *testing.T) {
	runs := sampleRuns()
	runs[0].Calls[0].ApiID = "<script>"
	r := Build("Staging", runs, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC))

	html, err := r.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, `class="status partial"`)
	assert.Contains(t, html, "2/3 (66.7%)")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.False(t, strings.Contains(html, "<script>"))
	assert.Contains(t, html, "Internal Server Error")
}
