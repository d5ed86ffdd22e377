package contentservice

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch flushes the content cache whenever anything under dir changes. It
// blocks until ctx is cancelled.
func (s *ContentService) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// fsnotify does not recurse
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("watching content directory", slog.String("dir", dir))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// new type directories must be watched too
					_ = watcher.Add(event.Name)
				}
			}

			if s.c != nil {
				s.c.Flush()
			}
			s.logger.Debug("content changed, cache flushed", slog.String("file", event.Name), slog.String("op", event.Op.String()))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("content watcher error", slog.String("error", err.Error()))

		case <-ctx.Done():
			return nil
		}
	}
}
