package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/fatih/color"
)

const maxBodyPreview = 200

// formatBody renders a response body for display, truncating long values
func formatBody(v any, maxLen int) string {
	var str string
	switch val := v.(type) {
	case nil:
		return "<empty>"
	case string:
		str = val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			str = fmt.Sprintf("%v", val)
		} else {
			str = string(data)
		}
	}
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(name string, result *model.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+name))

	for _, c := range result.Calls {
		symbol := green("✓")
		if c.Failed() {
			symbol = red("✗")
		}

		fmt.Fprintf(f.writer, "  %s %s %d %s\n", symbol, c.ApiID, c.StatusCode, cyan(fmt.Sprintf("(%dms)", c.DurationMs)))

		if msg := c.ErrorMessage(); msg != "" {
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), msg)
		}

		if f.verbose {
			fmt.Fprintf(f.writer, "    Body: %s\n", formatBody(c.ResponseBody, maxBodyPreview))
		}
	}

	var passed, failed int
	for _, c := range result.Calls {
		if c.Failed() {
			failed++
		} else {
			passed++
		}
	}

	status := string(result.Status)
	switch result.Status {
	case model.StatusSuccess:
		status = green(status)
	case model.StatusFailed:
		status = red(status)
	default:
		status = color.New(color.FgYellow).Sprint(status)
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Status: %s\n", status)
	fmt.Fprintf(f.writer, "Calls:  ")
	if passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(result.Calls))
	fmt.Fprintf(f.writer, "Time:   %dms\n", result.DurationMs)
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitcron"), version)
}
