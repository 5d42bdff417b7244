// Package host defines what linkwatch needs from the application that owns
// the projects: a project list, content lookup by identifier and a way to
// mark compilers for recompilation.
package host

// Project is a local build project. Implementations are owned by the host
// and only read by linkwatch.
type Project interface {
	Ident() string
	// CodePath is the directory scanned for symlinked subdirectories. It may be empty.
	CodePath() string
	Active() bool
}

// ContentKind classifies server content.
type ContentKind string

// KindRuntime is the only server content kind whose compiler is marked.
const KindRuntime ContentKind = "runtime"

// ContentHandle is a server content or tool addon registered with the host.
type ContentHandle interface {
	Ident() string
	Kind() ContentKind
}

// CompilerHandle identifies a compiler that can be marked for recompilation.
type CompilerHandle interface {
	Name() string
}

// ProjectLister enumerates local projects.
type ProjectLister interface {
	LocalProjects() ([]Project, error)
}

// ContentFinder looks up content by project identifier. Absence is reported
// with ok == false and is not an error.
type ContentFinder interface {
	FindServerContent(ident string) (ContentHandle, bool)
	FindToolAddon(ident string) (ContentHandle, bool)
}

// Compilers resolves and marks compiler handles. MarkForRecompile is called
// from watcher goroutines and must be safe for concurrent use.
type Compilers interface {
	ServerCompiler(content ContentHandle) (CompilerHandle, bool)
	ToolAddonCompiler(addon ContentHandle) (CompilerHandle, bool)
	MarkForRecompile(compiler CompilerHandle) error
}

// Host is everything linkwatch consumes from its host application.
type Host interface {
	ProjectLister
	ContentFinder
	Compilers
}
