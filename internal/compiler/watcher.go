package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"chainstate/internal/logging"
)

// DefaultDebounce collapses bursts of editor writes into one dirty mark.
const DefaultDebounce = 100 * time.Millisecond

// DefaultExtensions are the source files that invalidate compilation.
var DefaultExtensions = []string{".sol"}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Roots      []string
	Extensions []string
	Debounce   time.Duration
}

// Watcher marks compilation dirty when watched source files change.
// Directories under each root are watched recursively, including ones
// created after start.
type Watcher struct {
	watcher  *fsnotify.Watcher
	target   Target
	exts     []string
	debounce time.Duration
	logger   *logrus.Entry

	mu      sync.Mutex
	pending *time.Timer
	marks   int
}

// NewWatcher starts watching cfg.Roots. Call Start to process events.
func NewWatcher(cfg WatcherConfig, target Target, logger *logrus.Entry) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, fmt.Errorf("compiler watcher: no source roots")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		target:   target,
		exts:     cfg.Extensions,
		debounce: cfg.Debounce,
		logger:   logging.OrDiscard(logger),
	}
	if len(w.exts) == 0 {
		w.exts = DefaultExtensions
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	for _, root := range cfg.Roots {
		if err := w.addTree(root); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.logger.Debugf("Watching source directory: %s", path)
		return nil
	})
}

func (w *Watcher) relevant(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range w.exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Start processes events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.WithError(err).Warn("could not watch new directory")
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 && w.relevant(event.Name) {
				w.handleChange(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			_ = w.Close()
			return
		}
	}
}

// handleChange marks compilation dirty once per debounce window.
func (w *Watcher) handleChange(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Reset(w.debounce)
		return
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.pending = nil
		w.marks++
		w.mu.Unlock()
		w.logger.Infof("Sources changed: %s", filepath.Base(file))
		w.target.MarkDirty()
	})
}

// Marks returns how many times the watcher marked compilation dirty.
func (w *Watcher) Marks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.marks
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
