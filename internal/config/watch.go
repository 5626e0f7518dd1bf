package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/okian/innerscore/pkg/logger"
)

// Watch monitors path and calls onChange with the reloaded Config each
// time the file is written or replaced. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that
// write a temp file and rename it over path keep being seen.
//
// A reload that fails to parse or validate is logged and dropped; the
// previous config stays active.
func Watch(ctx context.Context, path string, log logger.Logger, onChange func(*Config)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", ErrWatchConfig, path, err)
	}
	target = filepath.Clean(target)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatchConfig, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("%w: add %s: %v", ErrWatchConfig, filepath.Dir(target), err)
	}

	log.Info(ctx, "watching config for changes", logger.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// A rename over path arrives as Create on the target name.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadFrom(ctx, target)
			if err != nil {
				log.Error(ctx, "config reload failed; keeping previous config",
					logger.String("path", target), logger.Error(err))
				continue
			}

			log.Info(ctx, "config reloaded", logger.String("path", target))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error(ctx, "config watcher error", logger.Error(err))
		}
	}
}
