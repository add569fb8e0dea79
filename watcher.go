package main

import (
	"context"
	"time"

	"github.com/angch/vastlogmon/config"
	"github.com/angch/vastlogmon/logger"
	"github.com/fsnotify/fsnotify"
)

const debounceDuration = 500 * time.Millisecond

// watchConfig calls onReload with the new configuration each time the file
// changes and still validates. Invalid edits are logged and ignored. Values
// set through flags keep precedence over the file.
func watchConfig(ctx context.Context, flags *config.Flags, configPath string, onReload func(*config.Config)) {
	log := logger.Get(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnw("Failed to create file watcher", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(configPath); err != nil {
		log.Warnw("Failed to watch config file", "path", configPath, "error", err)
		return
	}

	log.Debugw("Watching config file for changes", "path", configPath)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			// Editors that save by atomic rename replace the inode.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(100 * time.Millisecond)
				if err := watcher.Add(configPath); err != nil {
					log.Warnw("Config file renamed or removed and could not be re-watched", "path", configPath, "error", err)
					continue
				}
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDuration, func() {
				cfg, err := reloadConfig(flags, configPath)
				if err != nil {
					log.Warnw("Config file changed but is invalid, ignoring reload", "error", err)
					return
				}
				log.Infow("Config file changed and valid, reloading", "path", configPath)
				onReload(cfg)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("Watcher error", "error", err)
		}
	}
}

func reloadConfig(flags *config.Flags, path string) (*config.Config, error) {
	cfg, err := flags.Reload(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
