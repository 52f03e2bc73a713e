// Package watch reports changes to Scratch Language source files.
package watch

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must stay quiet before its change is
// reported. Editors often save in several writes.
const DefaultSettle = 100 * time.Millisecond

// Watcher watches source files for changes.
//
// Files are watched through their parent directories, so saves that
// replace a file by renaming a temporary one over it are still seen.
type Watcher struct {
	mu sync.RWMutex

	// fsWatcher is the underlying file watcher.
	fsWatcher *fsnotify.Watcher

	// files is the set of absolute source paths being watched.
	files map[string]bool

	// dirs counts the watched files in each directory.
	dirs map[string]int

	settle  time.Duration
	pending map[string]*time.Timer

	// Events receives settled changes.
	Events chan Event

	// Errors receives watcher errors.
	Errors chan error

	done chan struct{}
}

// Event is a settled change to a watched file.
type Event struct {
	// File is the absolute path of the file that changed.
	File string

	// Op is the last operation seen before the file settled.
	Op fsnotify.Op
}

// NewWatcher creates a watcher that reports a change once the file has
// been quiet for settle. A zero settle reports every event immediately.
func NewWatcher(settle time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		files:     make(map[string]bool),
		dirs:      make(map[string]int),
		settle:    settle,
		pending:   make(map[string]*time.Timer),
		Events:    make(chan Event, 100),
		Errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Add starts watching file.
func (w *Watcher) Add(file string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("getting absolute path: %w", err)
	}
	if w.files[absPath] {
		return nil
	}

	dir := filepath.Dir(absPath)
	if w.dirs[dir] == 0 {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[absPath] = true
	return nil
}

// Remove stops watching file.
func (w *Watcher) Remove(file string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	if !w.files[absPath] {
		return nil
	}
	delete(w.files, absPath)
	if t, ok := w.pending[absPath]; ok {
		t.Stop()
		delete(w.pending, absPath)
	}

	dir := filepath.Dir(absPath)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	return w.fsWatcher.Remove(dir)
}

// WatchedFiles returns the watched files, sorted.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	close(w.done)

	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	return w.fsWatcher.Close()
}

// run processes filesystem events.
func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// Renames land as Create on the new name.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// handleEvent schedules the report of a change to a watched file.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	absPath, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files[absPath] {
		return
	}
	if w.settle <= 0 {
		w.emit(Event{File: absPath, Op: event.Op})
		return
	}

	if t, ok := w.pending[absPath]; ok {
		t.Stop()
	}
	op := event.Op
	var timer *time.Timer
	timer = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		if w.pending[absPath] != timer {
			// Superseded by a later event.
			w.mu.Unlock()
			return
		}
		delete(w.pending, absPath)
		w.mu.Unlock()
		w.emit(Event{File: absPath, Op: op})
	})
	w.pending[absPath] = timer
}

func (w *Watcher) emit(ev Event) {
	select {
	case w.Events <- ev:
	case <-w.done:
	}
}
