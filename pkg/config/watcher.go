package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bentcrank-plotter/pkg/log"
)

// ReloadFunc receives the newly parsed settings and the names of the
// sections that changed.
type ReloadFunc func(pc PlotterConfig, changed []string) error

// Watcher re-parses a config file once it has stopped changing for the
// debounce period. A file that fails to parse is reported and the last good
// configuration stays in effect.
//
// The parent directory is watched rather than the file itself, so editors
// that save by writing a temporary file and renaming it over the original
// are picked up.
type Watcher struct {
	mu       sync.Mutex
	path     string
	current  *Config
	onReload ReloadFunc
	onError  func(error)
	debounce time.Duration

	ready  chan struct{}
	logger *log.Logger
}

// NewWatcher returns a watcher for path. current is the configuration the
// daemon started with and is used to work out which sections changed.
func NewWatcher(path string, current *Config, onReload ReloadFunc) *Watcher {
	if current == nil {
		current = New()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		current:  current,
		onReload: onReload,
		debounce: 250 * time.Millisecond,
		ready:    make(chan struct{}),
		logger:   log.GetLogger("config"),
	}
}

// SetDebounceTime sets how long the file must be quiet before it is
// reloaded.
func (w *Watcher) SetDebounceTime(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// OnError installs a callback for reload failures. Without one, failures
// are only logged.
func (w *Watcher) OnError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Run watches the file until ctx is done. It must be called at most once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return &ConfigError{File: w.path, Message: "watch: " + err.Error(), Cause: err}
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return &ConfigError{File: w.path, Message: "watch: " + err.Error(), Cause: err}
	}
	close(w.ready)
	w.logger.WithField("file", w.path).Debug("watching configuration")

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Each event restarts the quiet period.
			fire = time.After(w.debounceTime())

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.report(&ConfigError{File: w.path, Message: "watch: " + err.Error(), Cause: err})

		case <-fire:
			fire = nil
			if _, err := w.Reload(); err != nil {
				w.report(err)
			}
		}
	}
}

func (w *Watcher) debounceTime() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.debounce
}

func (w *Watcher) report(err error) {
	w.mu.Lock()
	fn := w.onError
	w.mu.Unlock()
	w.logger.WithError(err).Warn("config reload failed, keeping previous configuration")
	if fn != nil {
		fn(err)
	}
}

// Reload parses the file now. It returns true when the contents differed
// from the current configuration and the reload callback accepted them.
func (w *Watcher) Reload() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloadLocked()
}

func (w *Watcher) reloadLocked() (bool, error) {
	next, err := Load(w.path)
	if err != nil {
		return false, err
	}
	changed := DetectChanges(w.current, next)
	if len(changed) == 0 {
		return false, nil
	}
	pc, err := FromConfig(next)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok && ce.File == "" {
			ce.File = w.path
		}
		return false, err
	}
	if w.onReload != nil {
		if err := w.onReload(pc, changed); err != nil {
			return false, err
		}
	}
	w.current = next
	w.logger.WithField("sections", changed).Info("configuration reloaded")
	return true, nil
}

// DetectChanges returns the sections that were added, removed or modified
// between old and next, in that order of discovery.
func DetectChanges(old, next *Config) []string {
	var changed []string
	for _, sec := range next.GetSections() {
		name := sec.GetName()
		if !old.HasSection(name) {
			changed = append(changed, name)
			continue
		}
		if !sectionsEqual(old.sectionNoTrack(name), sec) {
			changed = append(changed, name)
		}
	}
	for _, sec := range old.GetSections() {
		if !next.HasSection(sec.GetName()) {
			changed = append(changed, sec.GetName())
		}
	}
	return changed
}

func (c *Config) sectionNoTrack(name string) *Section {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sections[name]
}

func sectionsEqual(a, b *Section) bool {
	aOpts, bOpts := a.RawOptions(), b.RawOptions()
	if len(aOpts) != len(bOpts) {
		return false
	}
	for k, v := range aOpts {
		if bv, ok := bOpts[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
