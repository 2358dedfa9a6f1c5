// Package watcher triggers rediscovery when input files change or a refresh interval elapses.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long a file must stay quiet before onChange fires
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a set of files for changes
type Watcher struct {
	paths    []string
	onChange func(path string)
	debounce time.Duration
	logger   *logrus.Logger
}

// New creates a watcher for paths. Empty paths are ignored.
func New(paths []string, onChange func(path string), logger *logrus.Logger) *Watcher {
	if logger == nil {
		logger = logrus.New()
	}
	var kept []string
	for _, p := range paths {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return &Watcher{
		paths:    kept,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Paths returns the files being watched
func (w *Watcher) Paths() []string {
	return w.paths
}

// Watch blocks until ctx is done, calling onChange once per burst of writes to a watched file.
// Directories are watched rather than files so editors that replace the file are seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	watchedDirs := make(map[string]bool)
	files := make(map[string]bool)
	for _, path := range w.paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			w.logger.WithError(err).WithField("path", path).Warn("Cannot resolve path, not watching")
			continue
		}
		dir := filepath.Dir(abs)
		if !watchedDirs[dir] {
			if err := fw.Add(dir); err != nil {
				return err
			}
			watchedDirs[dir] = true
		}
		files[abs] = true
		w.logger.WithField("path", abs).Info("Watching for changes")
	}

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !files[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			mu.Lock()
			if t, ok := timers[abs]; ok {
				t.Stop()
			}
			timers[abs] = time.AfterFunc(w.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				w.logger.WithField("path", abs).Info("File changed")
				w.onChange(abs)
			})
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Watcher error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
