package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/presence/logging"
)

// ConfigWatcher watches the directory of the daemon's config file and calls
// onReload when the config or its .env file changes.
type ConfigWatcher struct {
	watcher      *fsnotify.Watcher
	debounce     time.Duration
	lastChange   time.Time
	mu           sync.Mutex
	logger       *logrus.Entry
	onReload     func(file string)
	configDir    string
	watched      map[string]bool   // base names that trigger a reload
	targetToLink map[string]string // symlink target path -> link base name
}

// NewConfigWatcher creates a watcher for configFile. Rapid writes within
// debounceMs collapse into one reload. A symlinked config is followed so
// edits to its target are detected too.
func NewConfigWatcher(configFile string, debounceMs int, onReload func(string)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("config-watcher")
	configDir := filepath.Dir(configFile)

	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, err
	}

	watched := map[string]bool{
		filepath.Base(configFile): true,
		".env":                    true,
	}
	targetToLink := make(map[string]string)

	// fsnotify doesn't follow symlinks, so watch the target's directory too.
	if info, err := os.Lstat(configFile); err == nil && info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(configFile)
		if err != nil {
			logger.WithError(err).Warnf("Failed to resolve symlink %s", configFile)
		} else {
			targetToLink[target] = filepath.Base(configFile)
			if targetDir := filepath.Dir(target); targetDir != configDir {
				if err := watcher.Add(targetDir); err != nil {
					logger.WithError(err).Warnf("Failed to watch symlink target dir %s", targetDir)
				} else {
					logger.Debugf("Watching symlink target directory: %s", targetDir)
				}
			}
		}
	}

	if debounceMs <= 0 {
		debounceMs = 100
	}

	return &ConfigWatcher{
		watcher:      watcher,
		debounce:     time.Duration(debounceMs) * time.Millisecond,
		logger:       logger,
		onReload:     onReload,
		configDir:    configDir,
		watched:      watched,
		targetToLink: targetToLink,
	}, nil
}

// Start begins watching for config changes. It blocks until the context is cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if file, ok := w.relevant(event.Name); ok {
				w.handleChange(file)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// relevant maps an event path to the config file name it concerns.
func (w *ConfigWatcher) relevant(name string) (string, bool) {
	if link, ok := w.targetToLink[name]; ok {
		return link, true
	}
	if filepath.Dir(name) != w.configDir {
		return "", false
	}
	base := filepath.Base(name)
	if w.watched[base] || strings.HasPrefix(base, ".env.") {
		return base, true
	}
	return "", false
}

// handleChange processes a config file change with debouncing.
func (w *ConfigWatcher) handleChange(file string) {
	w.mu.Lock()
	elapsed := time.Since(w.lastChange)
	if elapsed < w.debounce {
		w.mu.Unlock()
		w.logger.Debugf("Debounced: %s (only %v since last change)", file, elapsed)
		return
	}
	w.lastChange = time.Now()
	w.mu.Unlock()

	w.logger.Infof("Config changed: %s", file)
	if w.onReload != nil {
		w.onReload(file)
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}
