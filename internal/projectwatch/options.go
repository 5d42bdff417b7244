package projectwatch

import (
	"time"

	"github.com/grovetools/linkwatch/config"
	"github.com/grovetools/linkwatch/internal/fswatch"
)

// DefaultNotifyFilter is the mask applied to every symlink target watcher.
const DefaultNotifyFilter = fswatch.FileName | fswatch.DirectoryName | fswatch.Attributes |
	fswatch.Size | fswatch.LastWrite | fswatch.LastAccess

// Options configures the watchers a Set creates.
type Options struct {
	Filters      []string
	NotifyFilter fswatch.NotifyFilter
	Ignore       []string
	// Debounce > 0 collapses a burst of events into one request fired after
	// the burst has been quiet for this long.
	Debounce time.Duration
}

// DefaultOptions returns the source-file filters and the full change mask.
func DefaultOptions() Options {
	return Options{
		Filters:      append([]string(nil), config.DefaultFilters...),
		NotifyFilter: DefaultNotifyFilter,
	}
}

// OptionsFromConfig converts the watch section of linkwatch.yml.
func OptionsFromConfig(w config.WatchConfig) (Options, error) {
	opts := DefaultOptions()
	if len(w.Filters) > 0 {
		opts.Filters = append([]string(nil), w.Filters...)
	}
	if len(w.Notify) > 0 {
		mask, err := fswatch.ParseNotifyFilter(w.Notify)
		if err != nil {
			return opts, err
		}
		opts.NotifyFilter = mask
	}
	opts.Ignore = append([]string(nil), w.Ignore...)
	opts.Debounce = w.Debounce()
	return opts, nil
}

func (o Options) withDefaults() Options {
	if len(o.Filters) == 0 {
		o.Filters = append([]string(nil), config.DefaultFilters...)
	}
	if o.NotifyFilter == 0 {
		o.NotifyFilter = DefaultNotifyFilter
	}
	return o
}
