package config

import (
	"fmt"
	"strings"

	"github.com/grovetools/linkwatch/errors"
)

var notifyNames = map[string]bool{
	"file_name":      true,
	"directory_name": true,
	"attributes":     true,
	"size":           true,
	"last_write":     true,
	"last_access":    true,
	"creation_time":  true,
	"security":       true,
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	for _, name := range c.Watch.Notify {
		if !notifyNames[name] {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown notify category '%s'", name)).
				WithDetail("notify", name)
		}
	}
	for _, filter := range c.Watch.Filters {
		if strings.TrimSpace(filter) == "" {
			return errors.New(errors.ErrCodeConfigValidation, "watch.filters cannot contain empty patterns")
		}
	}
	if c.Watch.DebounceMs < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "watch.debounce_ms cannot be negative")
	}

	seen := make(map[string]bool)
	for i, p := range c.Projects {
		if p.Ident == "" {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("projects[%d].ident cannot be empty", i))
		}
		key := NormalizeIdent(p.Ident)
		if seen[key] {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("duplicate project ident '%s'", p.Ident)).
				WithDetail("ident", p.Ident)
		}
		seen[key] = true
	}

	if err := validateContents("server_contents", c.ServerContents); err != nil {
		return err
	}
	return validateContents("tool_addons", c.ToolAddons)
}

func validateContents(section string, contents []ContentConfig) error {
	for i, content := range contents {
		if content.Ident == "" {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s[%d].ident cannot be empty", section, i))
		}
		if content.Compiler != nil && len(content.Compiler.Command) == 0 && content.Compiler.Dir != "" {
			return errors.New(errors.ErrCodeConfigValidation,
				fmt.Sprintf("%s[%d].compiler.dir is set without a command", section, i)).
				WithDetail("ident", content.Ident)
		}
	}
	return nil
}

// NormalizeIdent strips the "#local" marker and lowercases an identifier so
// that project, server content and tool addon idents compare equal.
func NormalizeIdent(ident string) string {
	return strings.ToLower(strings.ReplaceAll(ident, "#local", ""))
}
