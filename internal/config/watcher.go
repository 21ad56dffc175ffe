package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"padkeyd/internal/logging"
)

// Watch re-reads the config file whenever it changes and hands each valid
// result to onChange. Invalid edits are logged and skipped; the running
// configuration stays as it was. Watch blocks until the context ends.
//
// The parent directory is watched rather than the file itself, because
// editors and provisioning tools replace config files atomically.
func Watch(ctx context.Context, path string, log *logging.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	// Debounce: a file replace arrives as several events in a burst.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watch error", "error", err)

		case <-pending:
			pending = nil
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config reload skipped", "error", err)
				continue
			}
			log.Info("config reloaded", "path", path)
			onChange(cfg)
		}
	}
}

// ApplyLogging applies the reloadable part of a config to a live logger.
// Only the level can change at runtime; output and format need a restart.
func ApplyLogging(cfg *Config, log *logging.Logger) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Warn("bad log level in config", "level", cfg.Logging.Level)
		return
	}
	log.SetLevel(level)
}
