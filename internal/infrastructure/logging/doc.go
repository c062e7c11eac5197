// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("session opened", zap.String("session_id", id))
//	logger.Warn("gateway delete failed", zap.Error(err))
package logging
