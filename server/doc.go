// Package server is the caseflow status API: a Gin engine behind net/http
// middleware, served as a lifecycle component.
//
// Routes:
//
//   - GET /health, GET /ready: component health
//   - GET /version: build information
//   - GET /runs: run history, filtered by dag_id and status
//   - GET /runs/:id: one run with its task transitions
//   - POST /runs: manual trigger for {"logical_date": "YYYY-MM-DD"}
//   - DELETE /runs/:id: cancel an active run
//
// The runtime also mounts GET /events, an SSE stream of run lifecycle
// events served by package sse.
package server
