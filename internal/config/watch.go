package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watch reloads the config file at path whenever its content changes and
// passes the new Config to onReload. current is the config the server was
// started with. Only the log section takes effect live; changes to any other
// section are reported as needing a restart. A file that fails to parse or
// validate is logged and the previous config stays in force.
//
// The parent directory is watched rather than the file, so editors that save
// by writing a temp file and renaming it over path are seen too.
func Watch(ctx context.Context, path string, current *Config, onReload func(*Config)) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	entry := log.WithField("path", path)
	entry.Info("config: watching for changes")

	last, _ := os.ReadFile(path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			data, err := os.ReadFile(path)
			if err != nil || bytes.Equal(data, last) {
				continue
			}
			last = data

			next, err := parse(data)
			if err != nil {
				entry.WithError(err).Error("config: reload failed, keeping previous config")
				continue
			}

			if keys := RestartRequired(current, next); len(keys) > 0 {
				entry.WithField("sections", keys).Warn("config: changes need a restart to take effect")
			}
			entry.WithField("log_level", next.Log.Level).Info("config: reloaded")

			current = next
			onReload(next)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			entry.WithError(err).Error("config: watcher error")
		}
	}
}
