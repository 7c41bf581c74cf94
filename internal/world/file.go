package world

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Locations []Location `yaml:"locations"`
}

// File is a world loaded from a YAML file:
//
//	locations:
//	  - name: Home:Kitchen
//	    objects: [stove, fridge]
type File struct {
	*Static
	path string
}

// Load reads a world file.
func Load(path string) (*File, error) {
	f := &File{Static: NewStatic(), path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Parse decodes world YAML.
func Parse(data []byte) ([]Location, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse world: %w", err)
	}
	for i, l := range ff.Locations {
		if l.Name == "" {
			return nil, fmt.Errorf("parse world: location %d has no name", i)
		}
	}
	return ff.Locations, nil
}

// Reload re-reads the file and swaps in its contents.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read world: %w", err)
	}
	locs, err := Parse(data)
	if err != nil {
		return err
	}
	f.Replace(locs)
	return nil
}

// Watch reloads the file whenever it changes until ctx is done. Bursts of
// events within debounce collapse into one reload. A broken edit is logged and
// the previous contents stay in effect.
func (f *File) Watch(ctx context.Context, debounce time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", f.path, err)
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, f.path) {
				continue
			}
			if !pending {
				timer.Reset(debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("world watch error", "err", err)
		case <-timer.C:
			pending = false
			if err := f.Reload(); err != nil {
				logger.Warn("world reload failed, keeping previous", "path", f.path, "err", err)
				continue
			}
			logger.Info("world reloaded", "path", f.path, "locations", len(f.Locations()))
		}
	}
}

func relevant(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != filepath.Clean(path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
