package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Watch reloads the config file whenever it changes and passes the new
// config to fn. Files that fail to load are logged and skipped.
// It returns when ctx is done.
func Watch(ctx context.Context, path string, fn func(Config)) (err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fs watcher")
	}

	defer func() {
		if e := w.Close(); e != nil && err == nil {
			err = errors.Wrap(e, "close watcher")
		}
	}()

	path = filepath.Clean(path)

	// the directory is watched so that editors replacing the file are seen
	err = w.Add(filepath.Dir(path))
	if err != nil {
		return errors.Wrap(err, "watch %v", path)
	}

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				tlog.Printw("config reload", "file", path, "err", err, "", tlog.Error)
				continue
			}

			tlog.Printw("config reloaded", "file", path, "tokens", len(cfg.Tokens))

			fn(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			tlog.Printw("config watcher", "err", err, "", tlog.Error)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
