package prompts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads overlay templates when files in the prompts directory
// change. A broken edit keeps the previously loaded version; reload errors
// are logged, never fatal (startup already validated the required set).
type Watcher struct {
	registry *Registry
	dir      string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
}

// NewWatcher creates a watcher over the given overlay directory.
func NewWatcher(registry *Registry, dir string, logger *zap.Logger) (*Watcher, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("stat prompts directory %s: %w", dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		registry: registry,
		dir:      dir,
		watcher:  fw,
		logger:   logger,
	}, nil
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if err := w.registry.loadFile(event.Name); err != nil {
				w.logger.Warn("Prompt template reload failed; keeping previous version",
					zap.String("path", event.Name),
					zap.Error(err),
				)
				continue
			}
			w.logger.Info("Prompt template reloaded", zap.String("path", event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Prompt watcher error", zap.Error(err))
		}
	}
}
