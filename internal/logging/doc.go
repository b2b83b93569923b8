// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Both write to stderr by default; stdout belongs to fetched payloads.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "warn"})
//	if err != nil {
//		return err
//	}
//	engine := netrequest.New(netrequest.WithLogger(logger.Named("engine").Logger))
package logging
