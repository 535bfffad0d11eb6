// Package logger provides structured logging for caseflow using zerolog.
//
// Every package takes a *Logger and tags it with WithComponent. Fields are
// passed as maps so call sites stay uniform:
//
//	log.Info("task succeeded", logger.Fields("run_id", id, "task", name))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
package logger
