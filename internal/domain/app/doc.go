// Package app holds the launcher's application state manager.
//
// The Manager tracks a two-state machine, Idle and Playing(version), and
// mirrors every effective change to an optional presence client. One Manager
// is created at startup and shared by pointer; there is no package-level
// instance.
//
// Rules:
//   - Versions are validated before any I/O (non-blank, at most 50
//     characters, no control characters).
//   - Requesting the current state is a no-op and never calls the client.
//   - With a client attached, state is committed only after the client
//     accepted the update. On failure the previous state is kept and the
//     error is returned wrapped in *PresenceError. Nothing is retried.
//   - Transitions hold an exclusive lock across the client call, so the
//     presence service sees updates in commit order.
//
// Example Usage:
//
//	manager := app.NewManagerWithClient(discordClient).WithLogger(log)
//	if err := manager.TransitionToPlaying(ctx, "1.21.3"); err != nil {
//	    log.Warn("presence not updated", zap.Error(err))
//	}
//	defer manager.DisconnectPresenceClient(ctx)
package app
