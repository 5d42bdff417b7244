// Package status persists the last snapshot written by linkwatch watch so
// other invocations can report what is being watched.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/linkwatch/internal/coordinator"
	"github.com/grovetools/linkwatch/pkg/paths"
	"gopkg.in/yaml.v3"
)

// Status is the on-disk record of a running watch.
type Status struct {
	PID       int                        `yaml:"pid" json:"pid"`
	Config    string                     `yaml:"config" json:"config"`
	Trigger   string                     `yaml:"trigger" json:"trigger"`
	UpdatedAt time.Time                  `yaml:"updated_at" json:"updated_at"`
	Projects  []coordinator.ProjectState `yaml:"projects" json:"projects"`
}

// DefaultPath returns the status file in the linkwatch state directory.
func DefaultPath() string {
	return filepath.Join(paths.StateDir(), "status.yml")
}

// Load reads the status file. A missing file yields nil and no error.
func Load(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read status file: %w", err)
	}

	var s Status
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse status file: %w", err)
	}
	return &s, nil
}

// Save writes s to path, replacing it atomically.
func Save(path string, s Status) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*.yml")
	if err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write status file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}

// Remove deletes the status file if present.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
