package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitcron/packages/scheduler"
	"github.com/abdul-hamid-achik/hitcron/packages/workspace"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workspace>...",
	Short: "Validate workspace files without importing them",
	Long: `Validate workspace files against the workspace schema, check their
cross references and parse every cron expression.

Examples:
  hitcron validate workspace.yaml
  hitcron validate staging.yaml prod.yaml`,
	Args: cobra.MinimumNArgs(1),
	// validation needs neither config nor store
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	hasErrors := false
	for _, file := range args {
		if err := validateWorkspace(file); err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return withExitCode(ExitParseError, fmt.Errorf("validation failed"))
	}

	return nil
}

func validateWorkspace(path string) error {
	ws, err := workspace.Load(path)
	if err != nil {
		return err
	}

	var errs workspace.ValidationErrors
	for _, s := range ws.Schedules {
		if err := scheduler.ValidateSpec(s.CronExpression); err != nil {
			errs = append(errs, fmt.Sprintf("schedule %q: %v", s.ID, err))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
