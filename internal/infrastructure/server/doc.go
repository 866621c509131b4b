// Package server wires the launcher backend together.
//
// NewServer performs the startup sequence once: bootstrap the data
// directory, build the state manager, attach the Discord presence client
// when enabled, and mount the control API, metrics and state stream on a
// gin router. Run serves until its context ends; shutdown returns the
// presence to idle and disconnects it.
//
// Example Usage:
//
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server
