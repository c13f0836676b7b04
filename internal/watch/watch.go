// Package watch reports changes to the refs of an on-disk git repository.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/tmplstore/internal/debounce"
)

const DefaultDelay = 350 * time.Millisecond

// Watcher calls a function, debounced, whenever HEAD, packed-refs or a branch
// ref of the repository changes.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	debounce *debounce.Debouncer

	closeOnce sync.Once
	done      chan struct{}
}

func New(repoPath string, delay time.Duration, onChange func()) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("watch: change callback not set")
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	gitDir := filepath.Join(repoPath, ".git")
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a git working tree", repoPath)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{
		root:    gitDir,
		watcher: fw,
		done:    make(chan struct{}),
	}
	w.debounce = debounce.New(delay, onChange)
	for _, path := range watchPaths(gitDir) {
		slog.Debug("adding path to FS watcher", slog.String("path", path))
		if err := fw.Add(path); err != nil {
			err := errors.Join(err, fw.Close())
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
		// The loop has exited, so nothing can re-arm the timer.
		w.debounce.Stop()
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				w.addIfRefDir(ev.Name)
			}
			if !w.isRefPath(ev.Name) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			w.debounce.Trigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

// addIfRefDir starts watching directories created for nested branch names
// such as refs/heads/feature/x.
func (w *Watcher) addIfRefDir(name string) {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return
	}
	if !strings.HasPrefix(name, filepath.Join(w.root, "refs", "heads")) {
		return
	}
	if err := w.watcher.Add(name); err != nil {
		slog.Debug("watch ref directory", slog.String("path", name), slog.Any("error", err))
	}
}

func (w *Watcher) isRefPath(name string) bool {
	if shouldIgnoreWatchPath(name) {
		return false
	}
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel == "HEAD" || rel == "packed-refs" || strings.HasPrefix(rel, "refs/heads/")
}

func watchPaths(gitDir string) []string {
	paths := []string{gitDir, filepath.Join(gitDir, "refs")}
	heads := filepath.Join(gitDir, "refs", "heads")
	_ = filepath.WalkDir(heads, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}

func shouldIgnoreWatchPath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}
