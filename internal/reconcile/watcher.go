package reconcile

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// WatchOptions tunes the watch loop.
type WatchOptions struct {
	// Debounce is the quiet period after the last event before a Sync.
	Debounce time.Duration
	// MinInterval is the minimum time between two Syncs.
	MinInterval time.Duration
}

// DefaultWatchOptions returns the defaults used when a field is zero.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{Debounce: 200 * time.Millisecond, MinInterval: 2 * time.Second}
}

// Watch runs Sync whenever notes under dir (the absolute notes directory)
// change, until ctx is cancelled. Bursts of events collapse into one Sync
// and Syncs are never closer together than opts.MinInterval. New
// directories are watched as they appear.
func Watch(ctx context.Context, eng *Engine, dir string, opts WatchOptions) error {
	def := DefaultWatchOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = def.MinInterval
	}
	logger := eng.logger
	ext := eng.ws.Layout.Extension

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, dir); err != nil {
		return err
	}
	logger.Info("watcher: started",
		slog.String("dir", dir),
		slog.Duration("debounce", opts.Debounce),
		slog.Duration("min_interval", opts.MinInterval))

	limiter := rate.NewLimiter(rate.Every(opts.MinInterval), 1)

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func(d time.Duration) {
		if timer == nil {
			timer = time.NewTimer(d)
			fire = timer.C
			return
		}
		timer.Stop()
		timer.Reset(d)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			r := limiter.Reserve()
			if d := r.Delay(); d > 0 {
				r.Cancel()
				schedule(d)
				continue
			}
			rep, err := eng.Sync()
			if err != nil {
				logger.Error("watcher: sync failed", slog.String("error", err.Error()))
				continue
			}
			if err := rep.Err(); err != nil {
				logger.Warn("watcher: sync finished with failures",
					slog.String("run_id", rep.RunID),
					slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					continue
				}
			}
			if !strings.HasSuffix(ev.Name, ext) || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule(opts.Debounce)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and every non-hidden subdirectory to w.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
