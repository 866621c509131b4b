// Package discord implements presence.Client over Discord's local RPC
// socket (a Unix socket or a Windows named pipe).
//
// The client connects on its first SetActivity, answers pings, and drops
// the connection on any transport error so the next call redials. Updates
// are paced to Discord's limit of five per twenty seconds and guarded by a
// circuit breaker so a missing Discord costs one failed dial, not one per
// state change.
package discord
