package query

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source says where each template comes from. A file wins over the inline
// string when both are set.
type Source struct {
	Count      string
	CountFile  string
	Change     string
	ChangeFile string
}

// Files returns the template files in use.
func (s Source) Files() []string {
	var files []string
	if s.CountFile != "" {
		files = append(files, s.CountFile)
	}
	if s.ChangeFile != "" {
		files = append(files, s.ChangeFile)
	}
	return files
}

// Load reads the templates from their source.
func (s Source) Load() (Templates, error) {
	count, err := readTemplate(s.Count, s.CountFile)
	if err != nil {
		return Templates{}, fmt.Errorf("count query: %w", err)
	}
	change, err := readTemplate(s.Change, s.ChangeFile)
	if err != nil {
		return Templates{}, fmt.Errorf("change query: %w", err)
	}
	return Templates{Count: count, Change: change}, nil
}

func readTemplate(inline, path string) (string, error) {
	if path == "" {
		return inline, nil
	}
	b, err := os.ReadFile(path) //nolint:gosec // path comes from the user's config
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}

// Watch reloads the builder's templates whenever one of the source files is
// written. It blocks until ctx is cancelled. onReload, if set, runs after
// every successful reload.
func Watch(ctx context.Context, b *Builder, src Source, logger *slog.Logger, onReload func()) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	files := src.Files()
	if len(files) == 0 {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Editors replace files on save, so watch the directories.
	watched := map[string]bool{}
	for _, f := range files {
		dir := filepath.Dir(f)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watched[dir] = true
	}

	targets := map[string]bool{}
	for _, f := range files {
		targets[filepath.Clean(f)] = true
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				t, err := src.Load()
				if err == nil {
					err = b.SetTemplates(t)
				}
				if err != nil {
					logger.Error("query template reload failed", "file", event.Name, "error", err)
					return
				}
				logger.Info("query templates reloaded", "file", event.Name)
				if onReload != nil {
					onReload()
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
