// Package config loads caseflow configuration from a YAML file, a .env file
// and the process environment, in that order of precedence (lowest first).
//
// Environment variables map onto nested keys by splitting on underscores, so
// SOURCE_URL and SCHEDULE_MAX_ACTIVE_RUNS both reach their sections:
//
//	var cfg workflow.Config
//	if err := config.Load("caseflow", &cfg); err != nil { ... }
package config
