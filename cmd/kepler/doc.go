// Command kepler runs the Cubic launcher backend: the activity state
// manager, its Discord rich presence bridge and the local control API.
//
// Usage:
//
//	# Serve the control API (default command)
//	kepler serve --port 7878
//
//	# Show a version on Discord for ten seconds, then go idle
//	kepler play 1.21.3 --hold 10s
//
//	# Create and print the data directories
//	kepler paths --json
//
// Configuration comes from a .env file and the environment (see
// internal/infrastructure/config); --log-level and --dev override logging.
//
// Signals:
//   - SIGINT, SIGTERM: return to idle, disconnect from Discord, exit
package main
