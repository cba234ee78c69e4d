// Package output provides formatters for displaying batch run results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - HTML: The email report rendered to a file
//
// Formatters receive one RunResult per collection. JSON, JUnit and HTML
// accumulate results and write them when Flush is called.
package output
