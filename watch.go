package pyext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long Watch waits for further changes before
// rebuilding.
const DefaultDebounce = 300 * time.Millisecond

// watchedExtensions are the file types that trigger a rebuild.
var watchedExtensions = []string{".cc", ".cpp", ".cxx", ".h", ".hpp", ".toml", ".yaml", ".yml"}

// Watcher rebuilds a project whenever one of its sources changes.
type Watcher struct {
	Setup    *Setup
	Dirs     []string      // Directories to watch; <project>/src and the project root if empty
	Debounce time.Duration // DefaultDebounce if zero

	// OnBuild is called after every build attempt.
	OnBuild func(results []*BuildResult, err error)
}

// Run builds once and then again after every relevant change until ctx
// is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range w.dirs() {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	log := w.Setup.config().logger()
	w.build(ctx)

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantChange(event) {
				continue
			}
			log.Debug("source changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			w.build(ctx)
		}
	}
}

func (w *Watcher) build(ctx context.Context) {
	results, err := w.Setup.Run(ctx)
	if err != nil {
		w.Setup.config().logger().Error("build failed", zap.Error(err))
	}
	if w.OnBuild != nil {
		w.OnBuild(results, err)
	}
}

func (w *Watcher) dirs() []string {
	if len(w.Dirs) > 0 {
		return w.Dirs
	}
	return []string{filepath.Join(w.Setup.ProjectDir, "src"), w.Setup.ProjectDir}
}

func relevantChange(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return MatchesExtension(event.Name, watchedExtensions...)
}
