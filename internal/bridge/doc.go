// Package bridge exposes a connected remote over HTTP.
//
// The bridge is a thin control surface for home-automation systems and
// scripts. It forwards intents to a session.Session and an
// openwebif.Poller and never talks to the receiver itself.
//
// # Endpoints
//
//	GET    /healthz                  liveness
//	GET    /api/state                connection and preview snapshot
//	POST   /api/connect              {"address": "192.168.1.20"}
//	POST   /api/reconnect            {"attempts": 3, "delay_ms": 2000}
//	POST   /api/disconnect
//	GET    /api/keys                 button table
//	POST   /api/command/{key}        key name, alias or integer code
//	POST   /api/power/{state}        power-state name or integer code
//	POST   /api/preview/start        {"high_res": true, "interval_seconds": 5}
//	POST   /api/preview/stop
//	GET    /api/preview/image        latest screen grab
//	GET    /api/log?hide_preview=1   request log
//	DELETE /api/log
//	GET    /api/devices              remembered receivers
//	GET    /ws                       event stream (JSON messages)
//	GET    /metrics                  Prometheus metrics, when configured
//
// Errors are returned as {"error": {"code": "...", "message": "..."}}.
//
// # Event stream
//
// Each WebSocket client first receives a "connection" and a "preview"
// event with the current state, then one event per change:
//
//	{"type": "connection", "connection": {...}}
//	{"type": "preview", "preview": {...}}
//	{"type": "log", "log": {...}}
//
// A client that cannot keep up misses events rather than slowing the
// remote down.
package bridge
