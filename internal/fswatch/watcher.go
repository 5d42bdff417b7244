// Package fswatch provides a filtered, optionally recursive directory watcher
// on top of fsnotify with per-category event handlers.
package fswatch

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/linkwatch/errors"
	"github.com/moby/patternmatcher"
	ignore "github.com/sabhiram/go-gitignore"
)

// EventKind is the category an Event was delivered under.
type EventKind int

const (
	Changed EventKind = iota
	Created
	Deleted
	Renamed
)

func (k EventKind) String() string {
	switch k {
	case Changed:
		return "changed"
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event describes one change below a watched directory.
type Event struct {
	Kind EventKind
	// Path is the absolute path of the entry. For Renamed it is the old path;
	// the new name arrives as a separate Created event.
	Path string
	// Name is Path relative to the watched root.
	Name    string
	OldPath string
	IsDir   bool
}

// Watcher reports changes below a directory. It is created disabled;
// attach handlers first, then call SetEnabled(true).
//
// Handlers run on the watcher's delivery goroutine, one at a time, in the
// order the native layer produced the events. Close and SetEnabled(false)
// wait for that goroutine and must not be called from a handler.
type Watcher struct {
	root string

	mu        sync.Mutex
	filters   []string
	matcher   *patternmatcher.PatternMatcher
	ignore    *ignore.GitIgnore
	recursive bool
	notify    NotifyFilter
	session   *session
	closed    bool

	handlersMu sync.RWMutex
	onChanged  []func(Event)
	onCreated  []func(Event)
	onDeleted  []func(Event)
	onRenamed  []func(Event)
	onError    []func(error)

	closeOnce sync.Once
}

// session is one enabled period: a native watcher plus its delivery goroutine.
type session struct {
	fsw     *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}
}

// New creates a disabled watcher for the directory at path. filters are
// filename globs; when none are given every name matches.
func New(path string, filters ...string) (*Watcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WatchBindFailed(path, err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeWatchBindFailed, "watch root is not a directory").
			WithDetail("path", path)
	}

	w := &Watcher{
		root:   filepath.Clean(path),
		notify: DefaultNotifyFilter,
	}
	if err := w.SetFilters(filters...); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the watched directory.
func (w *Watcher) Path() string {
	return w.root
}

// Filters returns a copy of the filename globs.
func (w *Watcher) Filters() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.filters...)
}

// AddFilter adds one more filename glob. A name matching any glob is relevant.
func (w *Watcher) AddFilter(pattern string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setFiltersLocked(append(append([]string(nil), w.filters...), pattern))
}

// SetFilters replaces the filename globs.
func (w *Watcher) SetFilters(patterns ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setFiltersLocked(append([]string(nil), patterns...))
}

func (w *Watcher) setFiltersLocked(patterns []string) error {
	if len(patterns) == 0 {
		w.filters = nil
		w.matcher = nil
		return nil
	}
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid filter pattern").
			WithDetail("filters", patterns)
	}
	w.filters = patterns
	w.matcher = pm
	return nil
}

// SetIgnore sets gitignore-style patterns, relative to the root, for entries
// that are never reported. Ignored directories are not watched.
func (w *Watcher) SetIgnore(patterns ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(patterns) == 0 {
		w.ignore = nil
		return
	}
	w.ignore = ignore.CompileIgnoreLines(patterns...)
}

// SetIncludeSubdirectories controls whether directories below the root are
// watched. Takes effect the next time the watcher is enabled.
func (w *Watcher) SetIncludeSubdirectories(recursive bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recursive = recursive
}

// IncludeSubdirectories reports whether the watch is recursive.
func (w *Watcher) IncludeSubdirectories() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recursive
}

// SetNotifyFilter sets which change categories are reported.
func (w *Watcher) SetNotifyFilter(f NotifyFilter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notify = f
}

// NotifyFilter returns the current category mask.
func (w *Watcher) NotifyFilter() NotifyFilter {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notify
}

// OnChanged registers a handler for content and metadata changes.
func (w *Watcher) OnChanged(fn func(Event)) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.onChanged = append(w.onChanged, fn)
}

// OnCreated registers a handler for new entries.
func (w *Watcher) OnCreated(fn func(Event)) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.onCreated = append(w.onCreated, fn)
}

// OnDeleted registers a handler for removed entries.
func (w *Watcher) OnDeleted(fn func(Event)) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.onDeleted = append(w.onDeleted, fn)
}

// OnRenamed registers a handler for entries moved away from their name.
func (w *Watcher) OnRenamed(fn func(Event)) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.onRenamed = append(w.onRenamed, fn)
}

// OnError registers a handler for errors from the native layer, including
// event queue overflow.
func (w *Watcher) OnError(fn func(error)) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.onError = append(w.onError, fn)
}

// Enabled reports whether events are being delivered.
func (w *Watcher) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session != nil
}

// SetEnabled starts or stops event delivery. Enabling registers the root and,
// when recursive, every directory below it with the native layer.
func (w *Watcher) SetEnabled(enabled bool) error {
	if !enabled {
		w.mu.Lock()
		s := w.session
		w.session = nil
		w.mu.Unlock()
		s.stop()
		return nil
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New(errors.ErrCodeWatchBindFailed, "watcher is closed").WithDetail("path", w.root)
	}
	if w.session != nil {
		w.mu.Unlock()
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return errors.WatchBindFailed(w.root, err)
	}
	if err := fsw.Add(w.root); err != nil {
		w.mu.Unlock()
		fsw.Close()
		return errors.WatchBindFailed(w.root, err)
	}

	s := &session{
		fsw:     fsw,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	w.session = s
	recursive := w.recursive
	go w.run(s)
	w.mu.Unlock()

	if recursive {
		w.addTree(s, w.root, false)
	}
	return nil
}

// Close stops delivery and releases the native handle. It is safe to call
// more than once and on a nil watcher.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		s := w.session
		w.session = nil
		w.mu.Unlock()
		s.stop()
	})
	return nil
}

func (s *session) stop() {
	if s == nil {
		return
	}
	close(s.done)
	s.fsw.Close()
	<-s.stopped
}

func (w *Watcher) run(s *session) {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			w.handle(s, ev)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			w.dispatchError(err)
		}
	}
}

func (w *Watcher) handle(s *session, ev fsnotify.Event) {
	select {
	case <-s.done:
		return
	default:
	}

	w.mu.Lock()
	notify := w.notify
	recursive := w.recursive
	w.mu.Unlock()

	rel := w.rel(ev.Name)
	name := filepath.Base(ev.Name)

	if ev.Has(fsnotify.Create) {
		isDir := false
		if info, err := os.Stat(ev.Name); err == nil {
			isDir = info.IsDir()
		}
		if isDir && w.ignored(rel+"/") {
			return
		}
		if isDir && recursive {
			w.addTree(s, ev.Name, notify.Has(FileName))
		}
		flag := FileName
		if isDir {
			flag = DirectoryName
		}
		if notify.Has(flag) && w.relevant(name, rel) {
			w.dispatch(Event{Kind: Created, Path: ev.Name, Name: rel, IsDir: isDir})
		}
	}

	if !w.relevant(name, rel) {
		return
	}

	if ev.Has(fsnotify.Write) && notify.Has(LastWrite|Size) {
		w.dispatch(Event{Kind: Changed, Path: ev.Name, Name: rel})
	}
	if ev.Has(fsnotify.Chmod) && notify.Has(metadataFlags) {
		w.dispatch(Event{Kind: Changed, Path: ev.Name, Name: rel})
	}
	if ev.Has(fsnotify.Remove) && notify.Has(FileName|DirectoryName) {
		w.dispatch(Event{Kind: Deleted, Path: ev.Name, Name: rel})
	}
	if ev.Has(fsnotify.Rename) && notify.Has(FileName|DirectoryName) {
		w.dispatch(Event{Kind: Renamed, Path: ev.Name, Name: rel, OldPath: ev.Name})
	}
}

// addTree registers dir and the directories below it. With report set, files
// already present are delivered as Created; they were written before the
// native watch on their directory existed.
func (w *Watcher) addTree(s *session, dir string, report bool) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		select {
		case <-s.done:
			return filepath.SkipAll
		default:
		}
		rel := w.rel(path)
		if d.IsDir() {
			if path != w.root && w.ignored(rel+"/") {
				return filepath.SkipDir
			}
			if path == w.root {
				return nil
			}
			if err := s.fsw.Add(path); err != nil {
				w.dispatchError(errors.WatchBindFailed(path, err))
			}
			return nil
		}
		if report && w.relevant(d.Name(), rel) {
			w.dispatch(Event{Kind: Created, Path: path, Name: rel})
		}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) ignored(rel string) bool {
	w.mu.Lock()
	gi := w.ignore
	w.mu.Unlock()
	return gi != nil && gi.MatchesPath(rel)
}

// relevant reports whether an entry passes the filename filters and is not ignored.
func (w *Watcher) relevant(name, rel string) bool {
	if w.ignored(rel) {
		return false
	}
	w.mu.Lock()
	pm := w.matcher
	w.mu.Unlock()
	if pm == nil {
		return true
	}
	ok, err := pm.MatchesOrParentMatches(name)
	return err == nil && ok
}

func (w *Watcher) dispatch(ev Event) {
	w.handlersMu.RLock()
	var handlers []func(Event)
	switch ev.Kind {
	case Changed:
		handlers = w.onChanged
	case Created:
		handlers = w.onCreated
	case Deleted:
		handlers = w.onDeleted
	case Renamed:
		handlers = w.onRenamed
	}
	handlers = slices.Clone(handlers)
	w.handlersMu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

func (w *Watcher) dispatchError(err error) {
	w.handlersMu.RLock()
	handlers := slices.Clone(w.onError)
	w.handlersMu.RUnlock()

	for _, fn := range handlers {
		fn(err)
	}
}
