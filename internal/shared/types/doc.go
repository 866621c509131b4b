// Package types provides shared data structures for the launcher.
//
// Core Types:
//   - Activity: Idle, or Playing a specific game version
//   - StateSnapshot: Read-only copy of the state manager
//   - StateEvent: Notification of a committed transition
//
// Activity is a closed two-variant value. Build it with the constructors
// rather than struct literals:
//
//	a := types.Playing("1.21.3")
//	if a.IsPlaying() {
//	    fmt.Println(a.Version)
//	}
package types
