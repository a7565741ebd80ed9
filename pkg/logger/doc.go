// Package logger provides the structured logging interface used across igfetch.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger in their constructors and tests can swap in a capturing TestLogger.
// Console output goes to stderr; an optional file receives the same events.
//
//	err := logger.Initialize(&cfg.Logging, logger.Options{Quiet: quiet})
//
//	log := logger.GetLogger().WithField("component", "browser")
//	log.InfoWithFields("tab opened", map[string]interface{}{
//	    "url": pageURL,
//	})
package logger
