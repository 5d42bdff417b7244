package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// RequireSymlinks skips the test if the platform refuses to create symlinks
// (for example Windows without developer mode).
func RequireSymlinks(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	if err := os.Symlink(dir, filepath.Join(dir, "symlink-check")); err != nil {
		t.Skipf("Symlinks not available: %v", err)
	}
}

// MkdirAll creates dir and its parents
func MkdirAll(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755), "failed to create %s", dir)
	return dir
}

// WriteFile writes content to path, creating parent directories
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	MkdirAll(t, filepath.Dir(path))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "failed to write %s", path)
}

// Symlink creates link pointing at target
func Symlink(t *testing.T, target, link string) {
	t.Helper()
	require.NoError(t, os.Symlink(target, link), "failed to link %s -> %s", link, target)
}

// Canonical returns path with every symlink in it resolved. Temp dirs on
// macOS live behind /var -> /private/var, so comparisons against resolved
// targets must use this.
func Canonical(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

// LinkedProject is a project code directory whose "shared" child links to a
// separate library directory.
type LinkedProject struct {
	CodePath string
	Link     string
	Target   string
}

// SetupLinkedProject builds <tmp>/proj/code with a plain "local" directory,
// a "shared" symlink to <tmp>/data/shared-lib and a .cs file in the target.
func SetupLinkedProject(t *testing.T) LinkedProject {
	t.Helper()
	RequireSymlinks(t)

	root := t.TempDir()
	code := MkdirAll(t, filepath.Join(root, "proj", "code"))
	MkdirAll(t, filepath.Join(code, "local"))
	target := MkdirAll(t, filepath.Join(root, "data", "shared-lib"))
	WriteFile(t, filepath.Join(target, "Existing.cs"), "class Existing {}\n")

	link := filepath.Join(code, "shared")
	Symlink(t, target, link)

	return LinkedProject{
		CodePath: code,
		Link:     link,
		Target:   Canonical(t, target),
	}
}

// Settle gives the native watcher time to register before a test mutates the
// tree it watches.
func Settle() {
	time.Sleep(50 * time.Millisecond)
}
