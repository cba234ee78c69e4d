// Package runner executes API calls and batches of calls.
//
// It provides functionality for:
//   - Executing a single call with variable and response substitution
//   - Running an ordered batch sequentially, chaining each response into the next call
//   - Aggregating per-call outcomes into a run status
//   - Persisting exactly one RunResult per batch
//
// Calls within a batch never run in parallel: call i may reference the
// response of call i-1 through {{response.body.path}} placeholders.
package runner
