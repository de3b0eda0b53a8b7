// Package watcher reports working-tree activity so callers can refresh
// derived state, typically by wiring the callback to a repository's
// Refresh. It watches the tree recursively, skips .git and
// .gitignore-matched paths, and collapses event bursts into a single
// notification.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
)

const defaultDelay = 200 * time.Millisecond

// Watcher watches one working directory. The callback passed to New
// runs on a timer goroutine after each debounced burst of events.
type Watcher struct {
	root   string
	fs     *fsnotify.Watcher
	delay  time.Duration
	notify *debouncer
	log    *zap.Logger

	mu     sync.RWMutex
	ignore *gitignore.GitIgnore

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

type Option func(*Watcher)

// WithDelay sets the quiet period between the last filesystem event
// and the notification.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// New starts watching root and calls onChange after each settled burst
// of filesystem activity outside .git and the .gitignore rules.
func New(root string, onChange func(), opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:  root,
		fs:    fw,
		delay: defaultDelay,
		log:   zap.NewNop(),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.notify = newDebouncer(w.delay, onChange)

	w.reloadIgnore()
	if err := w.addDirTree(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Close stops event processing and drops any pending notification.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fs.Close()
		w.wg.Wait()
		w.notify.cancel()
	})
	return w.closeErr
}

// reloadIgnore recompiles the ignore rules from the root .gitignore.
// The .git directory is always excluded.
func (w *Watcher) reloadIgnore() {
	rules := gitignore.CompileIgnoreLines(".git")
	path := filepath.Join(w.root, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		compiled, err := gitignore.CompileIgnoreFileAndLines(path, ".git")
		if err != nil {
			w.log.Warn("parsing .gitignore", zap.Error(err))
		} else {
			rules = compiled
		}
	}

	w.mu.Lock()
	w.ignore = rules
	w.mu.Unlock()
}

func (w *Watcher) ignored(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	w.mu.RLock()
	rules := w.ignore
	w.mu.RUnlock()
	return rules.MatchesPath(rel)
}

// addDirTree registers path and every directory below it, skipping
// .git and ignored subtrees.
func (w *Watcher) addDirTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != path && os.IsNotExist(err) {
				// Entries can vanish between the listing and the stat.
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		if rel != "." && (d.Name() == ".git" || w.ignored(rel)) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}

	if rel == ".gitignore" {
		w.reloadIgnore()
		w.notify.call()
		return
	}
	if w.ignored(rel) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// A new directory can already hold a subtree by the time
			// its create event arrives; walk it so nested directories
			// get watches too.
			if err := w.addDirTree(event.Name); err != nil {
				w.log.Warn("watching new directory",
					zap.String("path", rel),
					zap.Error(err))
			}
		}
	}

	w.notify.call()
}
