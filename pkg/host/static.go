package host

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/linkwatch/config"
	"github.com/grovetools/linkwatch/errors"
	"github.com/grovetools/linkwatch/logging"
	"github.com/grovetools/linkwatch/pkg/paths"
	"github.com/sirupsen/logrus"
)

// Static is a Host backed by a linkwatch.yml document. Marking a compiler
// writes its stamp file and, when a command is configured, runs it. Marks that
// arrive while the command is running collapse into a single rerun.
type Static struct {
	logger *logrus.Entry

	mu        sync.RWMutex
	projects  []Project
	server    map[string]*content
	addons    map[string]*content
	compilers map[string]*compiler

	runs sync.WaitGroup
}

var _ Host = (*Static)(nil)

// CommandTimeout bounds a single run of a compiler command.
const CommandTimeout = 2 * time.Minute

type project struct {
	ident    string
	codePath string
	active   bool
}

func (p *project) Ident() string    { return p.ident }
func (p *project) CodePath() string { return p.codePath }
func (p *project) Active() bool     { return p.active }

type content struct {
	ident    string
	kind     ContentKind
	compiler *compiler
}

func (c *content) Ident() string     { return c.ident }
func (c *content) Kind() ContentKind { return c.kind }

type compiler struct {
	name string

	mu      sync.Mutex
	stamp   string
	command []string
	dir     string
	running bool
	pending bool
	marks   int
}

func (c *compiler) Name() string { return c.name }

// NewStatic builds a host from cfg. A nil logger falls back to the package logger.
func NewStatic(cfg *config.Config, logger *logrus.Entry) *Static {
	if logger == nil {
		logger = logging.NewLogger("host")
	}
	s := &Static{
		logger:    logger,
		compilers: make(map[string]*compiler),
	}
	s.Reload(cfg)
	return s
}

// Reload replaces the projects and content with those in cfg. Compilers that
// keep their name keep their run state.
func (s *Static) Reload(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects = make([]Project, 0, len(cfg.Projects))
	for _, p := range cfg.Projects {
		s.projects = append(s.projects, &project{
			ident:    p.Ident,
			codePath: p.Path,
			active:   p.IsActive(),
		})
	}

	compilers := make(map[string]*compiler)
	s.server = s.contentIndex(cfg.ServerContents, compilers)
	s.addons = s.contentIndex(cfg.ToolAddons, compilers)
	s.compilers = compilers
}

func (s *Static) contentIndex(entries []config.ContentConfig, compilers map[string]*compiler) map[string]*content {
	index := make(map[string]*content, len(entries))
	for _, e := range entries {
		c := &content{ident: e.Ident, kind: ContentKind(e.Kind)}
		if e.Compiler != nil {
			comp, ok := s.compilers[e.Compiler.Name]
			if !ok {
				comp = &compiler{name: e.Compiler.Name}
			}
			comp.mu.Lock()
			comp.stamp = e.Compiler.Stamp
			comp.command = append([]string(nil), e.Compiler.Command...)
			comp.dir = e.Compiler.Dir
			comp.mu.Unlock()
			compilers[comp.name] = comp
			c.compiler = comp
		}
		index[config.NormalizeIdent(e.Ident)] = c
	}
	return index
}

// LocalProjects returns every configured project, active or not.
func (s *Static) LocalProjects() ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Project(nil), s.projects...), nil
}

// FindServerContent matches ident case-insensitively, ignoring a #local suffix.
func (s *Static) FindServerContent(ident string) (ContentHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.server[config.NormalizeIdent(ident)]
	if !ok {
		return nil, false
	}
	return c, true
}

// FindToolAddon matches ident like FindServerContent.
func (s *Static) FindToolAddon(ident string) (ContentHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.addons[config.NormalizeIdent(ident)]
	if !ok {
		return nil, false
	}
	return c, true
}

// ServerCompiler returns the compiler configured for server content h.
func (s *Static) ServerCompiler(h ContentHandle) (CompilerHandle, bool) {
	return compilerOf(h)
}

// ToolAddonCompiler returns the compiler configured for tool addon h.
func (s *Static) ToolAddonCompiler(h ContentHandle) (CompilerHandle, bool) {
	return compilerOf(h)
}

func compilerOf(h ContentHandle) (CompilerHandle, bool) {
	c, ok := h.(*content)
	if !ok || c == nil || c.compiler == nil {
		return nil, false
	}
	return c.compiler, true
}

// MarkForRecompile writes the compiler's stamp file and schedules its command.
func (s *Static) MarkForRecompile(h CompilerHandle) error {
	if h == nil {
		return errors.New(errors.ErrCodeInvalidInput, "no compiler handle")
	}
	c, ok := h.(*compiler)
	if !ok {
		s.mu.RLock()
		c, ok = s.compilers[h.Name()]
		s.mu.RUnlock()
		if !ok {
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown compiler '%s'", h.Name()))
		}
	}

	c.mu.Lock()
	c.marks++
	stamp := c.stamp
	if stamp == "" {
		stamp = filepath.Join(paths.DirtyDir(), c.name)
	}
	c.mu.Unlock()

	logger := s.logger.WithField("compiler", c.name)
	var stampErr error
	if err := writeStamp(stamp); err != nil {
		stampErr = errors.Wrap(err, errors.ErrCodeInternal, "failed to write recompile stamp").
			WithDetail("compiler", c.name).
			WithDetail("stamp", stamp)
		logger.WithError(stampErr).Warn("Failed to write recompile stamp")
	} else {
		logger.Debug("Marked for recompile")
	}

	// The command still runs when the stamp could not be written.
	c.mu.Lock()
	start := len(c.command) > 0 && !c.running
	if len(c.command) > 0 && c.running {
		c.pending = true
	}
	if start {
		c.running = true
		s.runs.Add(1)
	}
	c.mu.Unlock()

	if start {
		go s.runCommand(c)
	}
	return stampErr
}

// Marks returns how many times the named compiler has been marked.
func (s *Static) Marks(name string) int {
	s.mu.RLock()
	c, ok := s.compilers[name]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.marks
}

// Wait blocks until no compiler command is running.
func (s *Static) Wait() {
	s.runs.Wait()
}

func (s *Static) runCommand(c *compiler) {
	defer s.runs.Done()
	for {
		c.mu.Lock()
		args := append([]string(nil), c.command...)
		dir := c.dir
		c.mu.Unlock()

		logger := s.logger.WithField("compiler", c.name)
		logger.Infof("Running %s", strings.Join(args, " "))
		ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				err = fmt.Errorf("timed out after %s: %w", CommandTimeout, err)
			}
			lwErr := errors.CommandFailed(strings.Join(args, " "), err)
			logger.WithError(lwErr).Warnf("Recompile command failed: %s", strings.TrimSpace(string(out)))
		}
		cancel()

		c.mu.Lock()
		if c.pending && len(c.command) > 0 {
			c.pending = false
			c.mu.Unlock()
			continue
		}
		c.pending = false
		c.running = false
		c.mu.Unlock()
		return
	}
}

func writeStamp(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339Nano)+"\n"), 0644)
}
