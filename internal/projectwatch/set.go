// Package projectwatch owns the watchers for one project's symlinked
// directories and turns their events into recompile requests.
package projectwatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/linkwatch/internal/fswatch"
	"github.com/grovetools/linkwatch/internal/symlink"
	"github.com/grovetools/linkwatch/logging"
	"github.com/grovetools/linkwatch/pkg/host"
	"github.com/sirupsen/logrus"
)

// Set holds the watchers of a single project together with the project's
// server content and tool addon handles.
type Set struct {
	ident  string
	host   host.Host
	logger *logrus.Entry

	server host.ContentHandle
	addon  host.ContentHandle

	links    []symlink.Link
	watchers []*fswatch.Watcher

	debounce time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	closed   bool

	requests  atomic.Int64
	closeOnce sync.Once
}

// New resolves the symlinked subdirectories of the project's code path and
// starts one recursive watcher per target. A project without a code path
// yields an empty Set. On error every watcher created so far is closed.
func New(project host.Project, h host.Host, opts Options, logger *logrus.Entry) (*Set, error) {
	if logger == nil {
		logger = logging.NewLogger("projectwatch")
	}
	opts = opts.withDefaults()

	s := &Set{
		ident:    project.Ident(),
		host:     h,
		logger:   logger.WithField("project", project.Ident()),
		debounce: opts.Debounce,
	}

	codePath := project.CodePath()
	if codePath == "" {
		return s, nil
	}

	if c, ok := h.FindServerContent(s.ident); ok {
		s.server = c
	}
	if c, ok := h.FindToolAddon(s.ident); ok {
		s.addon = c
	}

	links, err := symlink.NewResolver(logger).ResolveChildren(codePath)
	if err != nil {
		return nil, err
	}

	for _, link := range links {
		if err := s.watch(link, opts); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) watch(link symlink.Link, opts Options) error {
	w, err := fswatch.New(link.Target, opts.Filters...)
	if err != nil {
		return err
	}
	s.watchers = append(s.watchers, w)

	w.SetIncludeSubdirectories(true)
	w.SetNotifyFilter(opts.NotifyFilter)
	w.SetIgnore(opts.Ignore...)

	onEvent := func(ev fswatch.Event) {
		s.logger.WithFields(logrus.Fields{
			"event": ev.Kind.String(),
			"path":  ev.Path,
		}).Debug("Change in symlinked directory")
		s.RequestRecompile()
	}
	w.OnChanged(onEvent)
	w.OnCreated(onEvent)
	w.OnDeleted(onEvent)
	w.OnRenamed(onEvent)
	target := link.Target
	w.OnError(func(err error) { s.watchError(target, err) })

	if err := w.SetEnabled(true); err != nil {
		return err
	}
	s.links = append(s.links, link)
	s.logger.Infof("%s: Watching symlink %s -> %s", s.ident, link.Path, link.Target)
	return nil
}

// RequestRecompile marks the project's compilers. Server content is only
// recompiled when it is runtime content. Safe for concurrent use.
func (s *Set) RequestRecompile() {
	if s.debounce <= 0 {
		s.recompile()
		return
	}

	s.mu.Lock()
	if s.closed {
		// A handler still running while the Set closes delivers directly.
		s.mu.Unlock()
		s.recompile()
		return
	}
	if s.timer != nil {
		s.timer.Reset(s.debounce)
	} else {
		s.timer = time.AfterFunc(s.debounce, s.recompile)
	}
	s.mu.Unlock()
}

// watchError logs a native watcher error. Errors never request a recompile.
func (s *Set) watchError(target string, err error) {
	s.logger.WithError(err).Warnf("%s: Watcher error for %s", s.ident, target)
}

func (s *Set) recompile() {
	var compilers []host.CompilerHandle
	if s.server != nil && s.server.Kind() == host.KindRuntime {
		if c, ok := s.host.ServerCompiler(s.server); ok {
			compilers = append(compilers, c)
		}
	}
	if s.addon != nil {
		if c, ok := s.host.ToolAddonCompiler(s.addon); ok {
			compilers = append(compilers, c)
		}
	}
	if len(compilers) == 0 {
		return
	}

	s.requests.Add(1)
	for _, c := range compilers {
		if err := s.host.MarkForRecompile(c); err != nil {
			s.logger.WithError(err).Warnf("%s: Failed to mark %s for recompile", s.ident, c.Name())
		}
	}
}

// Close stops every watcher. A debounced request that is still waiting is
// delivered before Close returns. It is safe to call more than once and on a
// nil Set.
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		pending := s.timer != nil && s.timer.Stop()
		s.mu.Unlock()

		for _, w := range s.watchers {
			w.Close()
		}
		if pending {
			s.recompile()
		}
	})
	return nil
}

// Ident returns the project identifier.
func (s *Set) Ident() string {
	return s.ident
}

// Links returns the symlinks being watched.
func (s *Set) Links() []symlink.Link {
	return append([]symlink.Link(nil), s.links...)
}

// Len returns the number of watchers.
func (s *Set) Len() int {
	return len(s.watchers)
}

// Requests counts recompile requests that reached the host.
func (s *Set) Requests() int64 {
	return s.requests.Load()
}

// HasServerContent reports whether the host returned server content for the project.
func (s *Set) HasServerContent() bool {
	return s.server != nil
}

// HasToolAddon reports whether the host returned a tool addon for the project.
func (s *Set) HasToolAddon() bool {
	return s.addon != nil
}
