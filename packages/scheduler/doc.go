// Package scheduler runs scheduled tests on cron expressions.
//
// Each active ScheduledTest maps to exactly one cron entry. Scheduling an id
// that already has an entry removes the old entry first, and a firing is
// skipped while a previous firing of the same id is still running. Job state
// lives only in memory: InitializeAllTasks rebuilds it from the store and is
// the only recovery path after a restart.
//
// Cron expressions take five fields, an optional leading seconds field, or a
// descriptor such as @hourly or @every 10m.
package scheduler
