// Package ui renders the one-shot terminal output of the e2remote CLI.
//
// Commands such as probe, send and scan print a short header, do their
// work, and finish with a result box. The interactive remote lives in
// package tui; nothing here reads keys or runs a Bubble Tea program except
// the confirmation prompt, which reads one line.
//
// # Components
//
//   - Header: command banner with the target receiver and parameters
//   - Result: success, failure or warning box; failures carry
//     troubleshooting tips derived from the error
//   - Table: key, device and scan listings
//   - Log lines: request log entries coloured by outcome
//   - Confirm: "type yes" prompt for disruptive power-state changes
//
// # Logging Integration
//
// This package expects logging to be controlled via the E2REMOTE_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, so the
// styled output is displayed cleanly. Set E2REMOTE_LOG_LEVEL to "debug",
// "info", "warn", or "error" to enable logging output.
package ui
