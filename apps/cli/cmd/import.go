package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var importJSONFlag bool

var importCmd = &cobra.Command{
	Use:   "import <workspace>...",
	Short: "Load workspace files into the store",
	Long: `Validate workspace files and upsert their environments,
authentications, collections and scheduled tests into the store.
Records are matched by id; a scheduled test keeps its last run time.

Examples:
  hitcron import workspace.yaml
  hitcron import staging.yaml prod.yaml --database postgres://localhost/hitcron`,
	Args: cobra.MinimumNArgs(1),
	RunE: importCommand,
}

func init() {
	importCmd.Flags().BoolVar(&importJSONFlag, "json", false, "Print the import summary as JSON")
}

func importCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, path := range args {
		summary, err := importWorkspace(ctx, st, path)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", path, err)
			return err
		}

		if importJSONFlag {
			data, err := json.Marshal(map[string]any{"file": path, "summary": summary})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s:\n", path)
		fmt.Fprintf(cmd.OutOrStdout(), "  environments:    %d\n", summary.Environments)
		fmt.Fprintf(cmd.OutOrStdout(), "  authentications: %d\n", summary.Authentications)
		fmt.Fprintf(cmd.OutOrStdout(), "  collections:     %d (%d apis)\n", summary.Collections, summary.APIs)
		fmt.Fprintf(cmd.OutOrStdout(), "  schedules:       %d\n", summary.Schedules)
	}

	return nil
}
