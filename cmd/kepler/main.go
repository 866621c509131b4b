package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/cubiclauncher/kepler/internal/infrastructure/config"
	"github.com/cubiclauncher/kepler/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// Global carries what every command needs after flag parsing
type Global struct {
	Config *config.Config
	Logger *logging.Logger
}

// CLI definition & global flags
type CLI struct {
	EnvFile  string           `name:"env-file" help:"Environment file read before the process environment" default:".env"`
	LogLevel string           `name:"log-level" help:"Override LOG_LEVEL (debug, info, warn, error)"`
	Dev      bool             `help:"Human-readable development logging"`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve ServeCmd `cmd:"" default:"1" help:"Run the control API and Discord presence bridge"`
	Play  PlayCmd  `cmd:"" help:"Show a game version on Discord for a while, then go idle"`
	Paths PathsCmd `cmd:"" help:"Create the launcher data directories and print them"`
}

// setup loads configuration and builds the logger once flags are known
func (c *CLI) setup() (*Global, error) {
	cfg, err := config.Load(c.EnvFile)
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.Dev {
		cfg.Logging.Development = true
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, err
	}
	return &Global{Config: cfg, Logger: logger}, nil
}

func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("kepler"),
		kong.Description("Activity state and Discord rich presence for the Cubic launcher."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	}
	return kong.New(cli, append(base, opts...)...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	g, err := cli.setup()
	kctx.FatalIfErrorf(err)

	err = kctx.Run(g)
	g.Logger.Sync()
	kctx.FatalIfErrorf(err)
}
