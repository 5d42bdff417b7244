package cmd

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const configDebounce = 200 * time.Millisecond

// configWatcher calls onChange after the config file has been written and
// then left alone for configDebounce. The parent directory is watched so
// editors that replace the file by renaming are seen too.
type configWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	logger   *logrus.Entry
	onChange func()

	mu    sync.Mutex
	timer *time.Timer
}

func newConfigWatcher(path string, logger *logrus.Entry, onChange func()) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// fsnotify doesn't follow symlinks, so resolve the file to watch the real directory
	target := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		target = resolved
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &configWatcher{
		watcher:  watcher,
		path:     target,
		logger:   logger,
		onChange: onChange,
	}, nil
}

// Start delivers changes until ctx is cancelled.
func (w *configWatcher) Start(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Config watcher error")
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		}
	}
}

func (w *configWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Reset(configDebounce)
		return
	}
	w.timer = time.AfterFunc(configDebounce, func() {
		w.logger.Infof("Config changed: %s", filepath.Base(w.path))
		w.onChange()
	})
}
