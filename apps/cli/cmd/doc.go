// Package cmd implements the hitcron CLI commands using Cobra.
//
// Available commands:
//   - run: Execute one batch per collection and persist the results
//   - serve: Run the scheduler and the HTTP API until interrupted
//   - import: Load a workspace file into the store
//   - validate: Check workspace files without touching the store
//   - list: Display stored scheduled tests with their next fire time
//   - init: Create a config file and an example workspace
//   - version: Show hitcron version information
package cmd
