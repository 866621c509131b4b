package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// AppName is the directory name used under the user's data directory
const AppName = "kepler"

// Directory and file names inside the data directory
const (
	RuntimeDir   = "runtime"
	InstancesDir = "instances"
	SettingsFile = "settings.json"
)

// Layout is the set of paths the launcher owns
type Layout struct {
	Data      string `json:"data"`
	Runtime   string `json:"runtime"`
	Instances string `json:"instances"`
	Settings  string `json:"settings"`
}

// NewLayout derives the layout rooted at dataDir
func NewLayout(dataDir string) Layout {
	return Layout{
		Data:      dataDir,
		Runtime:   filepath.Join(dataDir, RuntimeDir),
		Instances: filepath.Join(dataDir, InstancesDir),
		Settings:  filepath.Join(dataDir, SettingsFile),
	}
}

// DefaultDataDir returns the per-user data directory for the launcher:
// $XDG_DATA_HOME/kepler when set, otherwise <user config dir>/kepler.
func DefaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve data directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Resolve returns the layout for override, or the default data directory when override is empty
func Resolve(override string) (Layout, error) {
	if override != "" {
		return NewLayout(override), nil
	}
	dir, err := DefaultDataDir()
	if err != nil {
		return Layout{}, err
	}
	return NewLayout(dir), nil
}

// Bootstrapper creates a Layout on disk exactly once.
// A failed attempt may be retried; a successful one is never repeated.
type Bootstrapper struct {
	layout Layout
	log    *zap.Logger

	mu   sync.Mutex
	done bool // Protected by mu
}

// NewBootstrapper creates a bootstrapper for layout
func NewBootstrapper(layout Layout, log *zap.Logger) *Bootstrapper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bootstrapper{layout: layout, log: log}
}

// Layout returns the managed layout
func (b *Bootstrapper) Layout() Layout {
	return b.layout
}

// Initialized reports whether Bootstrap has completed
func (b *Bootstrapper) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.done
}

// Bootstrap creates the data, runtime and instances directories and an
// empty settings file. An existing settings file is left untouched.
func (b *Bootstrapper) Bootstrap() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return nil
	}

	for _, dir := range []string{b.layout.Data, b.layout.Runtime, b.layout.Instances} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		b.log.Debug("directory ready", zap.String("path", dir))
	}

	f, err := os.OpenFile(b.layout.Settings, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	switch {
	case err == nil:
		if err := f.Close(); err != nil {
			return fmt.Errorf("create %s: %w", b.layout.Settings, err)
		}
		b.log.Info("settings file created", zap.String("path", b.layout.Settings))
	case errors.Is(err, fs.ErrExist):
	default:
		return fmt.Errorf("create %s: %w", b.layout.Settings, err)
	}

	b.done = true
	b.log.Info("data directory initialized", zap.String("path", b.layout.Data))
	return nil
}
