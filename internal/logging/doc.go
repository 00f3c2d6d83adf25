// Package logging provides structured logging for wfdlink.
//
// This package wraps zap logger with convenience functions for the logging
// patterns used throughout the link-establishment flow. It provides both
// general logging functions and specialized functions for the connect and
// address-resolution paths.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (ARP table dumps, per-probe results, stage misses)
//   - Info: Normal operations (connect attempts, group formation, resolved addresses)
//   - Warn: Non-fatal issues (connect errors that will be retried, ARP misses)
//   - Error: Terminal issues (retry budget exhausted, resolution failure, teardown failure)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Client address resolved",
//	    zap.String("peer", "aa:bb:cc:dd:ee:ff"),
//	    zap.String("ip", "192.168.49.12"),
//	    zap.String("stage", "arp_mac_free"),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
//	logging.LogConnectAttempt(peer, attempt, max, "connect_error")
//	logging.LogResolutionStage(peer, "arp_mac", ip)
//
// # Configuration
//
// Logging is silent by default so library consumers and CLI output stay clean.
// Set WFDLINK_LOG_LEVEL to enable it:
//
//	WFDLINK_LOG_LEVEL=debug wfdlink connect aa:bb:cc:dd:ee:ff
//
// Or initialize explicitly at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
