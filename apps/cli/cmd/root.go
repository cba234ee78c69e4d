package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/abdul-hamid-achik/hitcron/packages/core/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	envFileFlag  string
	databaseFlag string
	logLevelFlag string

	appConfig *config.Config
	logger    = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "hitcron",
	Short: "Scheduled API test runs. Chained calls, stored results.",
	Long: `hitcron executes ordered collections of HTTP calls, chains each
response into the next request, stores every run and fires scheduled
tests on cron expressions, emailing a report after each firing.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to config file (default: ./hitcron.{yaml,json})")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", "", "Path to .env file loaded before the config (default: ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&databaseFlag, "database", "", "Store connection string, overrides the config (sqlite://path, postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level, overrides the config (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

// setup loads .env, the config file and the logger for every command
func setup(cmd *cobra.Command, args []string) error {
	if err := loadDotEnv(envFileFlag); err != nil {
		return withExitCode(ExitConfigError, err)
	}

	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	if databaseFlag != "" {
		cfg.Database = databaseFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}

	level, err := cfg.Level()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	logger.SetLevel(level)
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	appConfig = cfg
	return nil
}

// loadDotEnv loads an explicit .env file or ./.env if it exists. Values
// already present in the environment win.
func loadDotEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}
