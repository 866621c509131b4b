//go:build windows

package discord

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

func pipeNames() []string {
	names := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		names = append(names, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
	}
	return names
}

func dialIPC(ctx context.Context) (net.Conn, error) {
	var lastErr error
	for _, name := range pipeNames() {
		conn, err := winio.DialPipeContext(ctx, name)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
