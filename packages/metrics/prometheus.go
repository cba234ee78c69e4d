package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

// ContentType is the Prometheus text exposition format
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Handler serves the collector in Prometheus text format
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		WritePrometheus(w, c.Snapshot())
	})
}

// WritePrometheus renders a in the Prometheus text format
func WritePrometheus(w io.Writer, a *AggregateMetrics) {
	fmt.Fprintf(w, "# HELP hitcron_runs_total Persisted batch runs by aggregate status\n")
	fmt.Fprintf(w, "# TYPE hitcron_runs_total counter\n")
	for _, status := range []model.RunStatus{model.StatusSuccess, model.StatusPartial, model.StatusFailed} {
		fmt.Fprintf(w, "hitcron_runs_total{status=\"%s\"} %d\n", status, a.RunsByStatus[status])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP hitcron_calls_total Total number of HTTP calls made\n")
	fmt.Fprintf(w, "# TYPE hitcron_calls_total counter\n")
	fmt.Fprintf(w, "hitcron_calls_total %d\n", a.TotalCalls)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP hitcron_calls_failed_total Calls with a status code of 400 or above\n")
	fmt.Fprintf(w, "# TYPE hitcron_calls_failed_total counter\n")
	fmt.Fprintf(w, "hitcron_calls_failed_total %d\n", a.FailureCount)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP hitcron_call_duration_ms Call duration in milliseconds\n")
	fmt.Fprintf(w, "# TYPE hitcron_call_duration_ms summary\n")
	fmt.Fprintf(w, "hitcron_call_duration_ms{quantile=\"0.5\"} %d\n", a.P50DurationMs)
	fmt.Fprintf(w, "hitcron_call_duration_ms{quantile=\"0.95\"} %d\n", a.P95DurationMs)
	fmt.Fprintf(w, "hitcron_call_duration_ms{quantile=\"0.99\"} %d\n", a.P99DurationMs)
	fmt.Fprintf(w, "hitcron_call_duration_ms_sum %d\n", a.TotalDurationMs)
	fmt.Fprintf(w, "hitcron_call_duration_ms_count %d\n", a.TotalCalls)
	fmt.Fprintln(w)

	// Status code distribution
	fmt.Fprintf(w, "# HELP hitcron_calls_by_status_total Calls by HTTP status code\n")
	fmt.Fprintf(w, "# TYPE hitcron_calls_by_status_total counter\n")

	codes := make([]int, 0, len(a.StatusCodes))
	for code := range a.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "hitcron_calls_by_status_total{status=\"%d\"} %d\n", code, a.StatusCodes[code])
	}

	if len(a.ByAPI) == 0 {
		return
	}
	fmt.Fprintln(w)

	ids := make([]string, 0, len(a.ByAPI))
	for id := range a.ByAPI {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(w, "# HELP hitcron_api_calls_total Calls per api definition\n")
	fmt.Fprintf(w, "# TYPE hitcron_api_calls_total counter\n")
	for _, id := range ids {
		fmt.Fprintf(w, "hitcron_api_calls_total{api=\"%s\"} %d\n", sanitizeLabel(id), a.ByAPI[id].TotalCalls)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP hitcron_api_calls_failed_total Failed calls per api definition\n")
	fmt.Fprintf(w, "# TYPE hitcron_api_calls_failed_total counter\n")
	for _, id := range ids {
		fmt.Fprintf(w, "hitcron_api_calls_failed_total{api=\"%s\"} %d\n", sanitizeLabel(id), a.ByAPI[id].FailureCount)
	}
}

// sanitizeLabel makes a string safe for use as a Prometheus label value
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
