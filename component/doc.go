// Package component manages the lifecycle of caseflow's infrastructure:
// the SQL database, the Redis handoff connection and the status server.
// Components start in registration order and stop in reverse.
package component
