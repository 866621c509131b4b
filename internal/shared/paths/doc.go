// Package paths resolves the launcher data directory and creates it on first run.
//
// # Directory Structure
//
//	<data>/
//	  ├── runtime/        (downloaded Java runtimes)
//	  ├── instances/      (game instances)
//	  └── settings.json   (launcher settings, created empty)
//
// # Usage
//
//	layout, err := paths.Resolve(cfg.Paths.DataDir)
//	b := paths.NewBootstrapper(layout, log)
//	if err := b.Bootstrap(); err != nil {
//	    // handle
//	}
package paths
