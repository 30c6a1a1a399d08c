// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Output defaults to stderr; stdout belongs to attached terminal sessions.
//
// Example Usage:
//
//	logger, err := logging.New(logging.ConfigFor("debug", false))
//	if err != nil {
//		logger = logging.Fallback(false)
//	}
//	log := logger.Component("terminal")
//	log.Warn("project mismatch", zap.String("session_id", id))
package logging
