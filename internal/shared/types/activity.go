package types

import "time"

// Kind identifies which variant an Activity holds
type Kind string

const (
	KindIdle    Kind = "idle"
	KindPlaying Kind = "playing"
)

// Activity is what the launcher is doing right now.
// Version is only meaningful for KindPlaying; Idle carries no data.
type Activity struct {
	Kind    Kind   `json:"kind"`
	Version string `json:"version,omitempty"`
}

// Idle returns the idle activity
func Idle() Activity {
	return Activity{Kind: KindIdle}
}

// Playing returns a playing activity for version.
// It does not validate; the state manager does.
func Playing(version string) Activity {
	return Activity{Kind: KindPlaying, Version: version}
}

// IsIdle reports whether a is the idle variant
func (a Activity) IsIdle() bool {
	return a.Kind != KindPlaying
}

// IsPlaying reports whether a is the playing variant
func (a Activity) IsPlaying() bool {
	return a.Kind == KindPlaying
}

// String returns a short human-readable form, e.g. "playing(1.21.3)"
func (a Activity) String() string {
	if a.Kind == KindPlaying {
		return "playing(" + a.Version + ")"
	}
	return string(KindIdle)
}

// StateSnapshot is a point-in-time copy of the state manager
type StateSnapshot struct {
	Activity        Activity   `json:"activity"`
	PresenceEnabled bool       `json:"presence_enabled"`
	ChangedAt       *time.Time `json:"changed_at,omitempty"`
}

// StateEvent is published after every committed effective transition
type StateEvent struct {
	Type      string    `json:"type"`
	From      Activity  `json:"from"`
	To        Activity  `json:"to"`
	Reported  bool      `json:"reported"` // true if the presence service was updated
	Timestamp time.Time `json:"timestamp"`
}
