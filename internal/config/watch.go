package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "issuecast/pkg/logx"
)

// Watch invokes onChange with each successfully reloaded config after the
// file changes on disk. The parent directory is watched because editors
// and configuration tools typically replace the file instead of writing
// in place. Invalid intermediate saves are logged and skipped; the last
// good config stays in effect.
//
// Watch returns once the watcher is installed; it stops when ctx is done.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}
	base := filepath.Base(path)

	go func() {
		defer w.Close()

		// Debounce: editors fire several events per save.
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(250 * time.Millisecond)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", logx.Err(err))
			case <-pending:
				pending = nil
				cfg, err := Load(path)
				if err != nil {
					log.Warn("config reload skipped", logx.Err(err))
					continue
				}
				log.Info("config reloaded", logx.String("path", path))
				onChange(cfg)
			}
		}
	}()
	return nil
}
