// Package logging provides structured logging for e2remote.
//
// This package wraps a zap logger with package-level convenience functions so
// that the OpenWebif client, the preview poller and the front ends all log
// the same way.
//
// # Log Levels
//
//   - Debug: every request and response, preview ticks
//   - Info: connection state changes, commands sent
//   - Warn: failed requests, dropped stale results
//   - Error: failures of the process itself (listener errors, broker loss)
//
// # Configuration
//
// Logging is silent unless a level is given, either explicitly or through the
// E2REMOTE_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Interactive commands keep the default silent logger so zap output does not
// interfere with the terminal UI.
//
// # Domain Helpers
//
//	logging.LogRequest("command", url)
//	logging.LogResponse("command", url, 200, elapsed, nil)
//	logging.LogConnectionState("10.0.0.5", "connected", "")
package logging
