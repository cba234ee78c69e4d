package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Runs     []JSONRun   `json:"runs"`
	Duration float64     `json:"duration"`
	Time     string      `json:"timestamp"`
}

// JSONSummary represents the call summary across all runs
type JSONSummary struct {
	Runs   int `json:"runs"`
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// JSONRun is one persisted batch together with the collection it came from
type JSONRun struct {
	Collection string `json:"collection"`
	*model.RunResult
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer io.Writer
	runs   []JSONRun
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		runs:   make([]JSONRun, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(name string, result *model.RunResult) {
	f.runs = append(f.runs, JSONRun{Collection: name, RunResult: result})
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual call results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	summary := JSONSummary{Runs: len(f.runs)}
	for _, r := range f.runs {
		for _, c := range r.Calls {
			summary.Total++
			if c.Failed() {
				summary.Failed++
			} else {
				summary.Passed++
			}
		}
	}

	output := JSONOutput{
		Summary:  summary,
		Runs:     f.runs,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
