package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/grovetools/linkwatch/pkg/host"
)

// FakeProject is a host.Project with exported fields.
type FakeProject struct {
	ID       string
	Path     string
	IsActive bool
}

func (p *FakeProject) Ident() string    { return p.ID }
func (p *FakeProject) CodePath() string { return p.Path }
func (p *FakeProject) Active() bool     { return p.IsActive }

// FakeContent is a server content or tool addon handle.
type FakeContent struct {
	ID       string
	Type     host.ContentKind
	Compiler string // empty means no compiler
}

func (c *FakeContent) Ident() string          { return c.ID }
func (c *FakeContent) Kind() host.ContentKind { return c.Type }

type fakeCompiler string

func (c fakeCompiler) Name() string { return string(c) }

// FakeHost is an in-memory host.Host that records every call.
type FakeHost struct {
	mu       sync.Mutex
	projects []host.Project
	servers  map[string]*FakeContent
	addons   map[string]*FakeContent
	marks    map[string]int
	calls    int

	// ListErr is returned by LocalProjects when set.
	ListErr error
	// PanicOn makes FindServerContent panic for this identifier.
	PanicOn string
	// MarkErr is returned by MarkForRecompile when set.
	MarkErr error
}

var _ host.Host = (*FakeHost)(nil)

// NewFakeHost creates an empty host.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		servers: make(map[string]*FakeContent),
		addons:  make(map[string]*FakeContent),
		marks:   make(map[string]int),
	}
}

// SetProjects replaces the project list.
func (h *FakeHost) SetProjects(projects ...*FakeProject) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.projects = h.projects[:0]
	for _, p := range projects {
		h.projects = append(h.projects, p)
	}
}

// AddServerContent registers server content under its identifier.
func (h *FakeHost) AddServerContent(c *FakeContent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.servers[strings.ToLower(c.ID)] = c
}

// AddToolAddon registers a tool addon under its identifier.
func (h *FakeHost) AddToolAddon(c *FakeContent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addons[strings.ToLower(c.ID)] = c
}

func (h *FakeHost) LocalProjects() ([]host.Project, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ListErr != nil {
		return nil, h.ListErr
	}
	return append([]host.Project(nil), h.projects...), nil
}

func (h *FakeHost) FindServerContent(ident string) (host.ContentHandle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.PanicOn != "" && ident == h.PanicOn {
		panic(fmt.Sprintf("lookup of %s exploded", ident))
	}
	c, ok := h.servers[strings.ToLower(ident)]
	if !ok {
		return nil, false
	}
	return c, true
}

func (h *FakeHost) FindToolAddon(ident string) (host.ContentHandle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.addons[strings.ToLower(ident)]
	if !ok {
		return nil, false
	}
	return c, true
}

func (h *FakeHost) ServerCompiler(content host.ContentHandle) (host.CompilerHandle, bool) {
	return h.compilerOf(content)
}

func (h *FakeHost) ToolAddonCompiler(addon host.ContentHandle) (host.CompilerHandle, bool) {
	return h.compilerOf(addon)
}

func (h *FakeHost) compilerOf(handle host.ContentHandle) (host.CompilerHandle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	c, ok := handle.(*FakeContent)
	if !ok || c.Compiler == "" {
		return nil, false
	}
	return fakeCompiler(c.Compiler), true
}

func (h *FakeHost) MarkForRecompile(compiler host.CompilerHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.marks[compiler.Name()]++
	return h.MarkErr
}

// Marks returns how often the named compiler was marked.
func (h *FakeHost) Marks(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.marks[name]
}

// TotalMarks returns the number of MarkForRecompile calls.
func (h *FakeHost) TotalMarks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, n := range h.marks {
		total += n
	}
	return total
}

// CompilerCalls counts compiler resolutions and marks.
func (h *FakeHost) CompilerCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}
