// Package presence defines the rich-presence contract consumed by the
// state manager.
//
// The state manager only depends on the Client interface. The concrete
// Discord IPC implementation lives in the discord subpackage.
package presence

import "context"

// Client reports activity to an external rich-presence service.
// Implementations may block on network I/O and must honor ctx.
type Client interface {
	SetActivity(ctx context.Context, activity Activity) error
	Disconnect(ctx context.Context) error
}

// Activity is the payload shown by the presence service
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Party      *Party      `json:"party,omitempty"`
	Secrets    *Secrets    `json:"secrets,omitempty"`
	Instance   *bool       `json:"instance,omitempty"`
}

// Timestamps are unix milliseconds
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets names the images (uploaded to the Discord application) and their hover text
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Party describes a joinable group
type Party struct {
	ID   string `json:"id,omitempty"`
	Size []int  `json:"size,omitempty"` // [current, max]
}

// Secrets carry join/spectate tokens
type Secrets struct {
	Join     string `json:"join,omitempty"`
	Spectate string `json:"spectate,omitempty"`
	Match    string `json:"match,omitempty"`
}
