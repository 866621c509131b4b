// Package http provides the control API the launcher UI uses to drive the
// activity state manager.
//
// Endpoints:
//   - Health: / and /health
//   - State: GET /state, POST /state/playing, POST /state/idle
//   - Presence: POST /presence/disconnect
//   - Support: GET /paths, GET /metrics/json, POST /logs
//
// Errors are JSON bodies {"error", "code", "request_id"}. Validation
// failures are 400, presence failures 502.
//
// Example Usage:
//
//	handlers := http.NewHandlers(manager, http.Options{Metrics: metrics})
//	handlers.Register(router)
package http
