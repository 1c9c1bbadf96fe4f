package cli

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modcheck/pkg/config"
	"github.com/platinummonkey/modcheck/pkg/workspace"
)

// watchedExtensions are the files whose changes trigger a run.
var watchedExtensions = map[string]bool{
	".kts":    true,
	".gradle": true,
	".kt":     true,
	".java":   true,
	".xml":    true,
	".yaml":   true,
	".yml":    true,
}

// watcher calls onChange once per burst of relevant file events.
type watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	log      logrus.FieldLogger
	onChange func()
}

func newWatcher(root string, debounce time.Duration, log logrus.FieldLogger, onChange func()) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{fsw: fsw, debounce: debounce, log: log, onChange: onChange}

	dirs, err := watchDirs(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	log.WithField("directories", len(dirs)).Info("watching workspace")
	return w, nil
}

// watchDirs returns the root, every module directory and every directory
// below the modules' src trees.
func watchDirs(root string) ([]string, error) {
	descriptors, err := workspace.Discover(root)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{root: true}
	dirs := []string{root}
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, d := range descriptors {
		moduleDir := filepath.Dir(d)
		add(moduleDir)
		src := filepath.Join(moduleDir, "src")
		_ = filepath.WalkDir(src, func(path string, e fs.DirEntry, err error) error {
			if err != nil || !e.IsDir() {
				return nil
			}
			if name := e.Name(); path != src && (strings.HasPrefix(name, ".") || name == "build") {
				return filepath.SkipDir
			}
			add(path)
			return nil
		})
	}
	return dirs, nil
}

func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	for _, name := range config.FileNames {
		if base == name {
			return true
		}
	}
	return watchedExtensions[filepath.Ext(base)]
}

// run dispatches events until ctx is done.
func (w *watcher) run(ctx context.Context) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				// new source directories are watched as they appear
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.fsw.Add(ev.Name); err == nil {
						w.log.WithField("path", ev.Name).Debug("watching new directory")
					}
				}
			}
			if !relevant(ev) {
				continue
			}
			w.log.WithFields(logrus.Fields{"path": ev.Name, "op": ev.Op.String()}).Debug("file changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.onChange()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("file watcher error")
		}
	}
}

// Close stops watching.
func (w *watcher) Close(context.Context) error {
	return w.fsw.Close()
}
