// Package ws streams activity changes to the launcher UI over WebSocket.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//   - get_state: Request a fresh snapshot
//
// Message Types (Server → Client):
//   - snapshot: Current state, always the first frame
//   - state_changed: A committed transition (from, to, reported)
//   - pong: Reply to ping
//   - error: Unknown request
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, ws.WithMetrics(metrics))
//	router.GET("/stream", handler.HandleConnection)
package ws
