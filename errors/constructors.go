package errors

import (
	"fmt"
	"os/exec"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *LinkwatchError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *LinkwatchError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// SymlinkUnresolved reports a symlink whose chain yields no target at all.
func SymlinkUnresolved(link string, cause error) *LinkwatchError {
	msg := fmt.Sprintf("resolved path for symlink %s is empty", link)
	if cause != nil {
		return Wrap(cause, ErrCodeSymlinkUnresolved, msg).WithDetail("link", link)
	}
	return New(ErrCodeSymlinkUnresolved, msg).WithDetail("link", link)
}

// WatchBindFailed creates an error for a native watch that could not be set up
func WatchBindFailed(path string, err error) *LinkwatchError {
	return Wrap(err, ErrCodeWatchBindFailed, fmt.Sprintf("failed to watch %s", path)).
		WithDetail("path", path)
}

// ProjectNotFound creates a project not found error
func ProjectNotFound(ident string) *LinkwatchError {
	return New(ErrCodeProjectNotFound, fmt.Sprintf("project '%s' not found", ident)).
		WithDetail("ident", ident)
}

// AlreadyRunning reports another live watch process holding pidPath
func AlreadyRunning(pid int, pidPath string) *LinkwatchError {
	return New(ErrCodeAlreadyRunning, fmt.Sprintf("linkwatch watch already running with PID %d", pid)).
		WithDetail("pid", pid).
		WithDetail("path", pidPath)
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *LinkwatchError {
	lwErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		lwErr = lwErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return lwErr
}
