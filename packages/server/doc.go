// Package server exposes the batch runner, stored runs and the scheduler
// registry over a gin HTTP API.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics                      Prometheus text format, with WithMetrics
//	POST   /api/v1/runs                  run a batch and persist it
//	GET    /api/v1/runs?sessionId=...    list runs of a session
//	GET    /api/v1/runs/:id
//	POST   /api/v1/calls                 execute one call without persisting
//	GET    /api/v1/schedules             stored scheduled tests and live jobs
//	PUT    /api/v1/schedules/:id         reload one scheduled test from the store
//	DELETE /api/v1/schedules/:id         stop a live job
//	POST   /api/v1/schedules/:id/fire    fire once now
//	POST   /api/v1/schedules/reload      rebuild every job from the store
//	GET    /api/v1/metrics               run metrics as JSON, with WithMetrics
package server
