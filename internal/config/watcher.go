package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gurkebaui/sun/internal/logx"
)

// DebounceDuration collapses the burst of events an editor save produces.
var DebounceDuration = 500 * time.Millisecond

// #region watch

// Watch emits on the returned channel after one of files was written or
// recreated, debounced. Parent directories are watched so atomic saves
// (write temp, rename) are seen. The channel closes when ctx is done.
func Watch(ctx context.Context, files ...string) (<-chan struct{}, error) {
	log := logx.Component("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	wanted := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			log.Warn().Str("file", file).Err(err).Msg("could not resolve watch file")
			continue
		}
		wanted[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	reloadCh := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(reloadCh)

		timer := time.NewTimer(time.Hour)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, _ := filepath.Abs(event.Name)
				if !wanted[name] {
					continue
				}
				if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
					timer.Reset(DebounceDuration)
				}
			case <-timer.C:
				log.Info().Msg("configuration change detected")
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("watcher error")
			}
		}
	}()
	return reloadCh, nil
}

// WatchTuning reloads the tuning file on every change and hands the result to
// apply. Files that fail to parse or validate are logged and skipped, and the
// previous tuning stays active. Blocks until ctx is done.
func WatchTuning(ctx context.Context, path string, base Tuning, apply func(Tuning)) error {
	log := logx.Component("config")

	changes, err := Watch(ctx, path)
	if err != nil {
		return err
	}
	for range changes {
		t, err := LoadTuning(path, base)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("tuning reload skipped")
			continue
		}
		log.Info().Str("file", path).Msg("tuning reloaded")
		apply(t)
	}
	return ctx.Err()
}

// #endregion
