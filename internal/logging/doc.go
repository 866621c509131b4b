// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON lines on stderr
//   - Development: colored console output
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	defer logger.Sync()
//	log := logger.Component("presence")
//	log.Info("connected", zap.String("pipe", path))
package logging
