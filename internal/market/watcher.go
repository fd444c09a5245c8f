package market

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"bhavcast/internal/logger"
)

// Watcher observes the bhavcopy directory and reports when a new session
// file has landed. Exchange downloads are written in chunks, so events are
// debounced before the callback fires.
type Watcher struct {
	dir      string
	debounce time.Duration
	onFile   func(path string)
}

func NewWatcher(dir string, onFile func(path string)) *Watcher {
	return &Watcher{dir: dir, debounce: 2 * time.Second, onFile: onFile}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}
	logger.Infof("watching %s for new session files", w.dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(strings.ToLower(name), ".csv") {
				continue
			}
			if _, ok := SessionFileDate(name); !ok {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watcher error: %v", err)
		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(pending, path)
				logger.Infof("new session file detected: %s", filepath.Base(path))
				if w.onFile != nil {
					w.onFile(path)
				}
			}
		}
	}
}
