package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Default watch settings applied by SetDefaults.
var (
	DefaultFilters = []string{"*.cs", "*.razor", "*.scss"}
	DefaultNotify  = []string{"file_name", "directory_name", "attributes", "size", "last_write", "last_access"}
)

const (
	DefaultVersion = "1"
	DefaultWorkers = 4

	// KindRuntime is the only server content kind whose compiler can be marked.
	KindRuntime = "runtime"
)

// Config is the root of a linkwatch.yml document.
type Config struct {
	Version        string          `yaml:"version" jsonschema:"description=Configuration version (e.g. '1')"`
	Watch          WatchConfig     `yaml:"watch,omitempty" jsonschema:"description=Settings shared by every symlink target watcher"`
	Projects       []ProjectConfig `yaml:"projects,omitempty" jsonschema:"description=Local projects whose code paths are scanned for symlinks"`
	ServerContents []ContentConfig `yaml:"server_contents,omitempty" jsonschema:"description=Server-side content handles matched to projects by ident"`
	ToolAddons     []ContentConfig `yaml:"tool_addons,omitempty" jsonschema:"description=Tool addon handles matched to projects by ident"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" jsonschema:"-"`
}

// WatchConfig configures the watchers created for resolved symlink targets.
type WatchConfig struct {
	// Filters are filename globs; a file matching any of them is relevant.
	Filters []string `yaml:"filters,omitempty" jsonschema:"description=Filename globs that make a change relevant"`
	// Notify lists the change categories to report.
	Notify []string `yaml:"notify,omitempty" jsonschema:"description=Change categories to report (file_name directory_name attributes size last_write last_access creation_time security)"`
	// Ignore holds gitignore-style patterns relative to each watched target.
	Ignore []string `yaml:"ignore,omitempty" jsonschema:"description=Gitignore-style patterns excluded inside watched targets"`
	// DebounceMs coalesces bursts of events into one recompile request. 0 disables it.
	DebounceMs int `yaml:"debounce_ms,omitempty" jsonschema:"minimum=0,description=Quiet period before a recompile request fires (0 = every event)"`
	// Workers bounds how many projects are set up in parallel during a rescan.
	Workers int `yaml:"workers,omitempty" jsonschema:"minimum=0,description=Projects set up in parallel during a rescan"`
}

// Debounce returns DebounceMs as a duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// ProjectConfig describes one local project.
type ProjectConfig struct {
	Ident  string `yaml:"ident" jsonschema:"description=Project identifier such as acme.game#local"`
	Path   string `yaml:"path,omitempty" jsonschema:"description=Code path scanned for symlinked subdirectories"`
	Active *bool  `yaml:"active,omitempty" jsonschema:"description=Inactive projects are not watched (default true)"`
}

// IsActive reports whether the project is active; projects are active unless disabled.
func (p ProjectConfig) IsActive() bool {
	return p.Active == nil || *p.Active
}

// ContentConfig describes a server content or tool addon registered with the host.
type ContentConfig struct {
	Ident    string          `yaml:"ident" jsonschema:"description=Identifier matched case-insensitively against project idents"`
	Kind     string          `yaml:"kind,omitempty" jsonschema:"description=Content kind; only runtime server content is recompiled"`
	Compiler *CompilerConfig `yaml:"compiler,omitempty" jsonschema:"description=Compiler marked dirty on change; absent means no compiler"`
}

// CompilerConfig describes how a compiler is marked for recompilation.
type CompilerConfig struct {
	Name string `yaml:"name,omitempty" jsonschema:"description=Display name and default stamp file name"`
	// Stamp is the file touched on every mark. Defaults to <state>/dirty/<name>.
	Stamp string `yaml:"stamp,omitempty" jsonschema:"description=Stamp file written on every mark"`
	// Command runs after a mark; marks arriving during a run collapse into one rerun.
	Command []string `yaml:"command,omitempty" jsonschema:"description=Command run after a mark"`
	Dir     string   `yaml:"dir,omitempty" jsonschema:"description=Working directory for command"`
}

// SetDefaults fills in unset values.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if len(c.Watch.Filters) == 0 {
		c.Watch.Filters = append([]string(nil), DefaultFilters...)
	}
	if len(c.Watch.Notify) == 0 {
		c.Watch.Notify = append([]string(nil), DefaultNotify...)
	}
	if c.Watch.Workers <= 0 {
		c.Watch.Workers = DefaultWorkers
	}
	for i := range c.ServerContents {
		if c.ServerContents[i].Kind == "" {
			c.ServerContents[i].Kind = KindRuntime
		}
	}
	for i := range c.Projects {
		c.Projects[i].Path = ExpandPath(c.Projects[i].Path)
	}
	for _, contents := range [][]ContentConfig{c.ServerContents, c.ToolAddons} {
		for i := range contents {
			comp := contents[i].Compiler
			if comp == nil {
				continue
			}
			if comp.Name == "" {
				comp.Name = contents[i].Ident
			}
			comp.Stamp = ExpandPath(comp.Stamp)
			comp.Dir = ExpandPath(comp.Dir)
		}
	}
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded linkwatch.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
