// Package log provides the logging abstraction used across asdustat.
//
// Components accept a [Logger] and never import a concrete logging library.
// A zerolog-backed adapter is provided for the CLI and a no-op logger for
// library embedders that do not want output.
//
//	logger := log.NewZerologAdapter()
//	logger.Info("session started", log.String("session_id", id))
//
// [With] binds fields to any Logger, which is how per-session loggers are
// derived:
//
//	sessionLog := log.With(logger, log.String("session_id", id))
//
// Implement the Logger interface to integrate with existing logging
// infrastructure.
package log
