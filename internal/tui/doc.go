// Package tui implements the interactive remote built on Bubble Tea.
//
// The program has two screens. The connect screen lists remembered
// receivers, runs mDNS scans and accepts a typed address. Once a probe
// succeeds the remote screen takes over: keys map to remote-control
// buttons, the status panel follows the connection and screen preview, and
// the lower pane shows the request log.
//
// Session, poller and log changes arrive over subscriptions and are turned
// into messages, so the model never reads shared state outside Update.
package tui
