package output

import (
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/report"
)

// HTMLFormatter writes the same HTML report that scheduled runs send by email
type HTMLFormatter struct {
	writer      io.Writer
	environment string
	runs        []*model.RunResult
}

// HTMLOption is a functional option for HTMLFormatter
type HTMLOption func(*HTMLFormatter)

func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

// HTMLWithEnvironment sets the environment name shown in the report header
func HTMLWithEnvironment(name string) HTMLOption {
	return func(f *HTMLFormatter) {
		f.environment = name
	}
}

func (f *HTMLFormatter) FormatResult(_ string, result *model.RunResult) {
	f.runs = append(f.runs, result)
}

func (f *HTMLFormatter) FormatError(err error) {}

func (f *HTMLFormatter) FormatHeader(version string) {}

// Flush renders every accumulated run into one report
func (f *HTMLFormatter) Flush(_ time.Duration) error {
	body, err := report.Build(f.environment, f.runs, time.Now()).HTML()
	if err != nil {
		return err
	}
	_, err = io.WriteString(f.writer, body)
	return err
}
