package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitcron project",
	Long: `Initialize a new hitcron project in the current directory.

This creates:
  - hitcron.yaml     - Configuration file (store, HTTP client, SMTP, redis)
  - workspace.yaml   - Example environments, collection and schedule

Examples:
  hitcron init
  hitcron init --force`,
	Args: cobra.NoArgs,
	// init writes the config, it must not require one
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleWorkspace = `environments:
  - id: dev
    name: Development
    variables:
      - name: baseUrl
        value: http://localhost:3000
  - id: staging
    name: Staging
    variables:
      - name: baseUrl
        value: https://staging.api.example.com

authentications:
  - id: service
    apiKey: change-me

collections:
  - id: smoke
    applicationId: example
    name: Smoke
    apis:
      - id: create-resource
        method: POST
        url: "{{baseUrl}}/resources"
        order: 1
        body:
          name: Test Resource
      - id: get-resource
        method: GET
        url: "{{baseUrl}}/resources/{{response.body.id}}"
        order: 2
      - id: delete-resource
        method: DELETE
        url: "{{baseUrl}}/resources/{{response.body.id}}"
        order: 3

schedules:
  - id: smoke-hourly
    cron: "@hourly"
    environmentId: staging
    authenticationId: service
    collections: [smoke]
    emails: [team@example.com]
    isActive: false
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "hitcron.yaml")
	workspaceFile := filepath.Join(cwd, "workspace.yaml")

	if !forceInit {
		for _, f := range []string{configFile, workspaceFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	configContent := map[string]any{
		"database":         "sqlite://hitcron.db",
		"timeout":          "30s",
		"follow_redirects": true,
		"max_redirects":    10,
		"validate_ssl":     true,
		"log_level":        "info",
		"timezone":         "UTC",
		"headers": map[string]string{
			"User-Agent": "hitcron/1.0",
		},
		"http": map[string]any{
			"addr": ":8080",
		},
		"smtp": map[string]any{
			"host":            "",
			"port":            587,
			"from":            "hitcron@example.com",
			"rate_per_second": 1,
			"notify_on":       "always",
		},
		"redis": map[string]any{
			"url":      "",
			"lock_ttl": "5m",
		},
	}

	configYAML, err := yaml.Marshal(configContent)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFile, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(workspaceFile, []byte(exampleWorkspace), 0644); err != nil {
		return fmt.Errorf("failed to create workspace file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", workspaceFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitcron project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitcron run --workspace workspace.yaml --collection smoke --env dev' to execute the example collection.\n")

	return nil
}
