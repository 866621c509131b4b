package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/cubiclauncher/kepler/internal/domain/app"
	"github.com/cubiclauncher/kepler/internal/infrastructure/server"
	"github.com/cubiclauncher/kepler/internal/presence/discord"
	"github.com/cubiclauncher/kepler/internal/shared/paths"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Host string `help:"Override KEPLER_HOST"`
	Port string `short:"p" help:"Override KEPLER_PORT"`
}

func (s *ServeCmd) Run(g *Global) error {
	if s.Host != "" {
		g.Config.Server.Host = s.Host
	}
	if s.Port != "" {
		g.Config.Server.Port = s.Port
	}

	srv, err := server.NewServer(g.Config, server.WithLogger(g.Logger), server.WithVersion(version))
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	return srv.Run(ctx)
}

// PlayCmd implements the 'play' command.
type PlayCmd struct {
	Version string        `arg:"" help:"Game version to show, e.g. 1.21.3"`
	Hold    time.Duration `help:"How long to stay in the playing state" default:"10s"`
}

func (p *PlayCmd) Run(g *Global) error {
	manager := app.NewManager().WithLogger(g.Logger.Component("state"))
	if g.Config.Presence.Enabled {
		manager.AttachPresenceClient(discord.New(g.Config.Presence.AppID,
			discord.WithLogger(g.Logger.Component("discord")),
			discord.WithTimeout(g.Config.Presence.Timeout),
		))
	}

	ctx, stop := signalContext()
	defer stop()
	return runPlay(ctx, manager, p.Version, p.Hold, g.Config.Presence.Timeout, os.Stdout)
}

// runPlay shows version for hold (or until ctx ends), then returns to idle
// and disconnects. Cleanup runs even when the first transition fails.
func runPlay(ctx context.Context, manager *app.Manager, version string, hold, timeout time.Duration, out io.Writer) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	err := manager.TransitionToPlaying(callCtx, version)
	cancel()

	if err == nil {
		fmt.Fprintf(out, "playing %s\n", version)
		select {
		case <-time.After(hold):
		case <-ctx.Done():
		}
	} else {
		fmt.Fprintf(out, "could not switch to playing: %v\n", err)
	}

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), timeout)
	defer cleanupCancel()

	if idleErr := manager.TransitionToIdle(cleanupCtx); idleErr != nil {
		fmt.Fprintf(out, "could not switch to idle: %v\n", idleErr)
	} else {
		fmt.Fprintln(out, "idle")
	}
	if discErr := manager.DisconnectPresenceClient(cleanupCtx); discErr != nil {
		fmt.Fprintf(out, "disconnect failed: %v\n", discErr)
	}

	return err
}

// PathsCmd implements the 'paths' command.
type PathsCmd struct {
	JSON bool `help:"Print as JSON"`
}

func (p *PathsCmd) Run(g *Global) error {
	layout, err := paths.Resolve(g.Config.Paths.DataDir)
	if err != nil {
		return err
	}
	if err := paths.NewBootstrapper(layout, g.Logger.Component("paths")).Bootstrap(); err != nil {
		return err
	}
	g.Logger.Debug("paths ready", zap.String("data", layout.Data))
	return printLayout(os.Stdout, layout, p.JSON)
}

func printLayout(out io.Writer, layout paths.Layout, asJSON bool) error {
	if asJSON {
		data, err := sonic.ConfigStd.MarshalIndent(layout, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	_, err := fmt.Fprintf(out, "data:      %s\nruntime:   %s\ninstances: %s\nsettings:  %s\n",
		layout.Data, layout.Runtime, layout.Instances, layout.Settings)
	return err
}
