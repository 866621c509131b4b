package app

import (
	"github.com/cubiclauncher/kepler/internal/presence"
)

// DefaultApplicationID is the Discord application registered for the launcher
const DefaultApplicationID = "1305247641252397059"

// Asset keys uploaded to the Discord application
const (
	logoImage      = "logo"
	rustImage      = "rust"
	minecraftImage = "minecraft"
	launcherText   = "CubicMC"
	idleDetails    = "Idle"
)

// idleActivity is built once and shared; IdleActivity hands out copies.
var idleActivity = presence.Activity{
	Details: idleDetails,
	Assets: &presence.Assets{
		LargeImage: logoImage,
		LargeText:  launcherText,
		SmallImage: rustImage,
	},
}

// IdleActivity returns the presence payload shown while the launcher is idle
func IdleActivity() presence.Activity {
	a := idleActivity
	assets := *idleActivity.Assets
	a.Assets = &assets
	return a
}

// PlayingActivity returns the presence payload for a running game version
func PlayingActivity(version string) presence.Activity {
	return presence.Activity{
		Details: "Playing " + version,
		Assets: &presence.Assets{
			LargeImage: logoImage,
			LargeText:  launcherText,
			SmallImage: minecraftImage,
			SmallText:  version,
		},
	}
}
