//go:build !windows

package discord

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Discord packaged as flatpak or snap puts its socket in a subdirectory
var socketSubdirs = []string{
	"",
	"app/com.discordapp.Discord",
	"snap.discord",
}

// socketPaths lists every candidate IPC socket, in the order Discord clients try them
func socketPaths() []string {
	var bases []string
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(key); v != "" {
			bases = append(bases, v)
		}
	}
	bases = append(bases, "/tmp")

	var paths []string
	for _, base := range bases {
		for _, sub := range socketSubdirs {
			for i := 0; i < 10; i++ {
				paths = append(paths, filepath.Join(base, sub, fmt.Sprintf("discord-ipc-%d", i)))
			}
		}
	}
	return paths
}

func dialIPC(ctx context.Context) (net.Conn, error) {
	var (
		d       net.Dialer
		lastErr error
	)
	for _, path := range socketPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
