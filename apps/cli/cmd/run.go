package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
	"github.com/abdul-hamid-achik/hitcron/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcron/packages/output"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run collections once and store the results",
	Long: `Run one batch per collection against an environment. Each call's
response body feeds the {{response.body.path}} placeholders of the next.
Every batch is stored as one run; all runs of one invocation share a
session id.

Examples:
  hitcron run --collection smoke --env staging
  hitcron run -C smoke -C checkout --env staging --auth svc
  hitcron run --workspace workspace.yaml --collection smoke --env staging -o junit --output-file report.xml`,
	Args: cobra.NoArgs,
	RunE: runCommand,
}

var (
	collectionFlags []string
	envFlag         string
	authFlag        string
	workspaceFlag   string
	sessionFlag     string
	verboseFlag     bool
	noColorFlag     bool
	outputFlag      string
	outputFileFlag  string
)

func init() {
	runCmd.Flags().StringSliceVarP(&collectionFlags, "collection", "C", nil, "Collection id to run (repeatable)")
	runCmd.Flags().StringVarP(&envFlag, "env", "e", "", "Environment id")
	runCmd.Flags().StringVarP(&authFlag, "auth", "a", "", "Authentication credential id")
	runCmd.Flags().StringVarP(&workspaceFlag, "workspace", "w", "", "Import this workspace file before running")
	runCmd.Flags().StringVar(&sessionFlag, "session", "", "Session id to tag the runs with (default: random)")

	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Print response bodies")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", "console", "Output format: console, json, junit, html")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", "", "Write output to file (default: stdout)")

	_ = runCmd.MarkFlagRequired("collection")
	_ = runCmd.MarkFlagRequired("env")
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(name string, result *model.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

func newFormatter(format string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w)), nil
	case "html":
		return output.NewHTMLFormatter(output.HTMLWithWriter(w), output.HTMLWithEnvironment(envFlag)), nil
	case "", "console":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verboseFlag),
			output.WithNoColor(noColorFlag),
		), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var out io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	formatter, err := newFormatter(outputFlag, out)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	st, err := openStore(ctx)
	if err != nil {
		formatter.FormatError(err)
		return err
	}
	defer st.Close()

	if workspaceFlag != "" {
		if _, err := importWorkspace(ctx, st, workspaceFlag); err != nil {
			formatter.FormatError(err)
			return err
		}
	}

	sessionID := sessionFlag
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	r := newRunner(st, nil)
	start := time.Now()
	failed := 0

	for _, collectionID := range collectionFlags {
		collection, err := st.Collection(ctx, collectionID)
		if err != nil {
			formatter.FormatError(err)
			return withExitCode(ExitStoreError, err)
		}

		run, err := r.RunBatch(ctx, runner.BatchParams{
			ApplicationID:    collection.ApplicationID,
			EnvironmentID:    envFlag,
			AuthenticationID: authFlag,
			APIs:             collection.APIs,
			SessionID:        sessionID,
		})
		if err != nil {
			formatter.FormatError(err)
			var validation *runner.ValidationError
			if errors.As(err, &validation) {
				return withExitCode(ExitUsageError, err)
			}
			return withExitCode(ExitStoreError, err)
		}

		name := collection.Name
		if name == "" {
			name = collection.ID
		}
		formatter.FormatResult(name, run)
		if run.Status != model.StatusSuccess {
			failed++
		}
	}

	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(time.Since(start)); err != nil {
			return err
		}
	}

	logger.WithField("session_id", sessionID).Debug("run finished")

	if failed > 0 {
		return withExitCode(ExitTestFailure, fmt.Errorf("%d of %d runs did not succeed", failed, len(collectionFlags)))
	}
	return nil
}
