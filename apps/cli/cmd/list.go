package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/scheduler"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scheduled tests",
	Long: `List the scheduled tests in the store with their next fire time,
evaluated in the configured timezone.

Examples:
  hitcron list
  hitcron list --database postgres://localhost/hitcron`,
	Args: cobra.NoArgs,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	loc, err := appConfig.Location()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	tests, err := st.ScheduledTests(ctx)
	if err != nil {
		return withExitCode(ExitStoreError, err)
	}
	if len(tests) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scheduled tests")
		return nil
	}

	now := time.Now().In(loc)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCRON\tACTIVE\tCOLLECTIONS\tLAST RUN\tNEXT RUN")
	for _, t := range tests {
		last := "-"
		if t.LastRunAt != nil {
			last = t.LastRunAt.In(loc).Format(time.RFC3339)
		}
		next := "-"
		if t.IsActive {
			if at, err := scheduler.NextFire(t.CronExpression, now); err != nil {
				next = "invalid cron"
			} else {
				next = at.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n",
			t.ID, t.CronExpression, t.IsActive, strings.Join(t.CollectionIDs, ","), last, next)
	}
	return w.Flush()
}
