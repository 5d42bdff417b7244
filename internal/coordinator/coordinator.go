// Package coordinator keeps one projectwatch.Set per active project and
// rebuilds them whenever the host's project list may have changed.
package coordinator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/grovetools/linkwatch/errors"
	"github.com/grovetools/linkwatch/internal/projectwatch"
	"github.com/grovetools/linkwatch/internal/symlink"
	"github.com/grovetools/linkwatch/logging"
	"github.com/grovetools/linkwatch/pkg/host"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Trigger names why a rescan was requested.
type Trigger string

const (
	TriggerStartup         Trigger = "startup"
	TriggerProjectsChanged Trigger = "projects-changed"
	TriggerSessionStarted  Trigger = "session-started"
	TriggerManual          Trigger = "manual"
)

// DefaultWorkers bounds parallel Set construction when Options.Workers is unset.
const DefaultWorkers = 4

// Options configures a Coordinator.
type Options struct {
	Watch   projectwatch.Options
	Workers int
}

// ProjectState is a point-in-time view of one watched project.
type ProjectState struct {
	Ident     string         `json:"ident" yaml:"ident"`
	Links     []symlink.Link `json:"links" yaml:"links"`
	Requests  int64          `json:"requests" yaml:"requests"`
	HasServer bool           `json:"has_server_content" yaml:"has_server_content"`
	HasAddon  bool           `json:"has_tool_addon" yaml:"has_tool_addon"`
}

// Coordinator owns the registry of project watch sets.
type Coordinator struct {
	host   host.Host
	logger *logrus.Entry

	mu       sync.Mutex
	opts     Options
	registry map[string]*projectwatch.Set
	rescans  int

	triggers chan Trigger
	onRescan func(Trigger, []ProjectState)
}

// New creates a coordinator for h. Nothing is watched until the first Rescan.
func New(h host.Host, opts Options, logger *logrus.Entry) *Coordinator {
	if logger == nil {
		logger = logging.NewLogger("coordinator")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Coordinator{
		host:     h,
		logger:   logger,
		opts:     opts,
		registry: make(map[string]*projectwatch.Set),
		triggers: make(chan Trigger, 1),
	}
}

// SetOptions replaces the options used by the next rescan.
func (c *Coordinator) SetOptions(opts Options) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// OnRescan registers fn to receive a snapshot after every rescan started by Run.
func (c *Coordinator) OnRescan(fn func(Trigger, []ProjectState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRescan = fn
}

// WatchSymlinks rebuilds every project's watchers.
func (c *Coordinator) WatchSymlinks() {
	c.logger.Info("Watching symlinks")
	if err := c.Rescan(context.Background()); err != nil {
		c.logger.WithError(err).Warn("Rescan failed")
	}
}

// Rescan closes the current generation of watchers and builds a new one from
// the host's active projects. Failures of individual projects are logged and
// leave that project unwatched. The error is non-nil only when the project
// list itself could not be read or ctx was cancelled.
func (c *Coordinator) Rescan(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
	c.rescans++

	projects, err := c.listProjects()
	if err != nil {
		return err
	}

	var active []host.Project
	for _, p := range projects {
		if p == nil || !p.Active() {
			continue
		}
		active = append(active, p)
	}

	sets := make([]*projectwatch.Set, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, p := range active {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			set, err := c.build(p)
			if err != nil {
				c.logger.WithError(err).Warnf("%s: Failed to watch symlinks", p.Ident())
				return nil
			}
			sets[i] = set
			return nil
		})
	}
	waitErr := g.Wait()

	for _, set := range sets {
		if set == nil {
			continue
		}
		if waitErr != nil {
			set.Close()
			continue
		}
		key := set.Ident()
		if _, dup := c.registry[key]; dup {
			c.logger.Warnf("%s: Duplicate project identifier, skipping", set.Ident())
			set.Close()
			continue
		}
		c.registry[key] = set
	}
	if waitErr != nil {
		return waitErr
	}

	c.logger.WithField("projects", len(c.registry)).Debug("Rescan complete")
	return nil
}

// listProjects calls the host, turning a panic into an error.
func (c *Coordinator) listProjects() (projects []host.Project, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, fmt.Sprintf("listing projects panicked: %v", r))
		}
	}()
	return c.host.LocalProjects()
}

// build creates a Set for one project, turning a panic in host code into an error.
func (c *Coordinator) build(p host.Project) (set *projectwatch.Set, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debugf("panic while watching %s: %s", p.Ident(), debug.Stack())
			err = errors.New(errors.ErrCodeInternal, fmt.Sprintf("panic: %v", r)).
				WithDetail("project", p.Ident())
		}
	}()
	return projectwatch.New(p, c.host, c.opts.Watch, c.logger)
}

// Notify queues a rescan for Run. Requests arriving while one is already
// queued are merged into it.
func (c *Coordinator) Notify(t Trigger) {
	select {
	case c.triggers <- t:
	default:
		c.logger.WithField("trigger", string(t)).Debug("Rescan already queued")
	}
}

// Run rescans once at startup and then once per queued trigger until ctx is
// done. Every watcher is closed before Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.Close()

	c.rescan(ctx, TriggerStartup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-c.triggers:
			c.rescan(ctx, t)
		}
	}
}

func (c *Coordinator) rescan(ctx context.Context, t Trigger) {
	c.logger.WithField("trigger", string(t)).Info("Watching symlinks")
	if err := c.Rescan(ctx); err != nil && ctx.Err() == nil {
		c.logger.WithError(err).Warn("Rescan failed")
	}

	c.mu.Lock()
	fn := c.onRescan
	c.mu.Unlock()
	if fn != nil && ctx.Err() == nil {
		fn(t, c.Snapshot())
	}
}

// Snapshot returns the state of every watched project, sorted by identifier.
func (c *Coordinator) Snapshot() []ProjectState {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make([]ProjectState, 0, len(c.registry))
	for _, set := range c.registry {
		states = append(states, ProjectState{
			Ident:     set.Ident(),
			Links:     set.Links(),
			Requests:  set.Requests(),
			HasServer: set.HasServerContent(),
			HasAddon:  set.HasToolAddon(),
		})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Ident < states[j].Ident })
	return states
}

// Rescans returns how many rescans have started.
func (c *Coordinator) Rescans() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rescans
}

// Close disposes the current generation. The coordinator can be rescanned afterwards.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Coordinator) closeLocked() {
	for key, set := range c.registry {
		set.Close()
		delete(c.registry, key)
	}
}
