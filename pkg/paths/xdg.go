// Package paths provides XDG-compliant path resolution for linkwatch.
//
// Resolution order:
// 1. LINKWATCH_HOME (portable root) → $LINKWATCH_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/linkwatch
// 3. Platform defaults → ~/.config/linkwatch, ~/.local/state/linkwatch
package paths

import (
	"os"
	"path/filepath"
)

const appName = "linkwatch"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("LINKWATCH_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("LINKWATCH_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the linkwatch configuration directory.
// Used for the global linkwatch.yml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	if os.Getenv("LINKWATCH_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// StateDir returns the linkwatch state directory.
// Used for logs and recompile stamps.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	if os.Getenv("LINKWATCH_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory that holds log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// DirtyDir returns the directory that holds recompile stamp files.
func DirtyDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "dirty")
}

// EnsureDirs creates all linkwatch directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), LogDir(), DirtyDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
